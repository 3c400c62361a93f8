package store

import (
	"context"
	"testing"
)

func TestTaskCRUD(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	u, err := NewUserStore(db).Create(ctx, "tasks@example.com", "Tasks")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	s := NewTaskStore(db)

	task, err := s.Create(ctx, u.ID, "Write report", []string{"gather data", "draft"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Title != "Write report" || len(task.Subtasks) != 2 {
		t.Errorf("task = %+v", task)
	}

	bare, err := s.Create(ctx, u.ID, "Inbox zero", nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if bare.Subtasks == nil || len(bare.Subtasks) != 0 {
		t.Errorf("subtasks = %#v, want empty slice", bare.Subtasks)
	}

	tasks, err := s.List(ctx, u.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("len(tasks) = %d, want 2", len(tasks))
	}

	if err := s.Delete(ctx, u.ID, task.ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	got, err := s.GetByID(ctx, u.ID, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestTaskScopedToUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserStore(db)
	alice, _ := users.Create(ctx, "alice@example.com", "Alice")
	bob, _ := users.Create(ctx, "bob@example.com", "Bob")
	s := NewTaskStore(db)

	task, err := s.Create(ctx, alice.ID, "Alice only", nil)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	got, err := s.GetByID(ctx, bob.ID, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got != nil {
		t.Error("bob should not see alice's task")
	}
}
