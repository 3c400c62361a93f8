package model

import "time"

type Task struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Subtasks  []string  `json:"subtasks"`
	CreatedAt time.Time `json:"createdAt"`
}
