//go:build integration

package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sungwon/newsletter/internal/storage"
)

func insertIssue(t *testing.T, q *storage.Queries) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := q.InsertNewsletterIssue(context.Background(), storage.InsertNewsletterIssueParams{
		NewsletterIssueID: id,
		Title:             "Title",
		TextContent:       "text",
		HtmlContent:       "<p>html</p>",
		PublishedAt:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("insert issue: %v", err)
	}
	return id
}

func TestEnqueueDeliveryTasks_CollapsesDuplicates(t *testing.T) {
	_, q := setupTestDB(t)
	ctx := context.Background()
	issueID := insertIssue(t, q)

	n, err := q.EnqueueDeliveryTasks(ctx, issueID, []string{"a@example.com", "b@example.com", "a@example.com"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 tasks inserted, got %d", n)
	}

	count, err := q.CountDeliveryTasksForIssue(ctx, issueID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 tasks for issue, got %d", count)
	}
}

func TestEnqueueDeliveryTasks_Empty(t *testing.T) {
	_, q := setupTestDB(t)
	n, err := q.EnqueueDeliveryTasks(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0, got %d", n)
	}
}

func TestDequeueDeliveryTask_EmptyQueue(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)

	task, err := storage.New(tx).DequeueDeliveryTask(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if task.IsPresent() {
		t.Error("expected no task on empty queue")
	}
}

func TestDequeueDeliveryTask_SkipsLockedRows(t *testing.T) {
	db, q := setupTestDB(t)
	ctx := context.Background()
	issueID := insertIssue(t, q)
	if _, err := q.EnqueueDeliveryTasks(ctx, issueID, []string{"one@example.com", "two@example.com"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	tx1, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin tx1: %v", err)
	}
	defer tx1.Rollback(ctx)
	tx2, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin tx2: %v", err)
	}
	defer tx2.Rollback(ctx)
	tx3, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin tx3: %v", err)
	}
	defer tx3.Rollback(ctx)

	first, err := storage.New(tx1).DequeueDeliveryTask(ctx)
	if err != nil || !first.IsPresent() {
		t.Fatalf("tx1 expected a task, got present=%v err=%v", first.IsPresent(), err)
	}
	second, err := storage.New(tx2).DequeueDeliveryTask(ctx)
	if err != nil || !second.IsPresent() {
		t.Fatalf("tx2 expected a task, got present=%v err=%v", second.IsPresent(), err)
	}
	if first.Get().SubscriberEmail == second.Get().SubscriberEmail {
		t.Fatalf("both transactions claimed %q", first.Get().SubscriberEmail)
	}

	third, err := storage.New(tx3).DequeueDeliveryTask(ctx)
	if err != nil {
		t.Fatalf("tx3 dequeue: %v", err)
	}
	if third.IsPresent() {
		t.Error("expected tx3 to see no claimable task while both rows are locked")
	}
}

func TestDequeueDeliveryTask_RollbackReleasesClaim(t *testing.T) {
	db, q := setupTestDB(t)
	ctx := context.Background()
	issueID := insertIssue(t, q)
	if _, err := q.EnqueueDeliveryTasks(ctx, issueID, []string{"only@example.com"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	claimed, err := storage.New(tx).DequeueDeliveryTask(ctx)
	if err != nil || !claimed.IsPresent() {
		t.Fatalf("expected a claimed task, got present=%v err=%v", claimed.IsPresent(), err)
	}
	if err := storage.New(tx).DeleteDeliveryTask(ctx, issueID, "only@example.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Simulates a worker dying before commit.
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	tx2, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin tx2: %v", err)
	}
	defer tx2.Rollback(ctx)
	again, err := storage.New(tx2).DequeueDeliveryTask(ctx)
	if err != nil {
		t.Fatalf("dequeue after rollback: %v", err)
	}
	if !again.IsPresent() {
		t.Fatal("expected task to be claimable again after rollback")
	}
	if again.Get().SubscriberEmail != "only@example.com" {
		t.Errorf("expected only@example.com, got %q", again.Get().SubscriberEmail)
	}
}

func TestDeleteDeliveryTask(t *testing.T) {
	_, q := setupTestDB(t)
	ctx := context.Background()
	issueID := insertIssue(t, q)
	if _, err := q.EnqueueDeliveryTasks(ctx, issueID, []string{"x@example.com"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.DeleteDeliveryTask(ctx, issueID, "x@example.com"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	n, err := q.CountDeliveryTasks(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected empty queue, got %d", n)
	}
}
