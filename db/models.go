package db

type User struct {
	ID        int64  `json:"id" db:"id"`
	Username  string `json:"username" db:"username"`
	Email     string `json:"email" db:"email"`
	Password  string `json:"-" db:"password"` // Hashed password
	CreatedAt string `json:"created_at" db:"created_at"`
}
