package services

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"worksched/internal/core"
)

type fakeFileStore struct {
	saved []string
	files map[string]string
	err   error
}

func (f *fakeFileStore) Save(itemID int64, filename string, r io.Reader) (string, int64, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	data, _ := io.ReadAll(r)
	path := "7/123-" + filename
	f.saved = append(f.saved, path)
	if f.files == nil {
		f.files = map[string]string{}
	}
	f.files[path] = string(data)
	return path, int64(len(data)), nil
}

func (f *fakeFileStore) Open(relPath string) (io.ReadCloser, error) {
	content, ok := f.files[relPath]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func seedItem(store *fakeStore, status core.Status, assignee string) int64 {
	id := store.nextID
	store.nextID++
	store.items[id] = core.LineItem{
		ID: id, JobID: 1, Code: "X", Description: "paint hallway",
		Category: core.DefaultCategory, Assignee: assignee, Status: status,
	}
	return id
}

func TestUpdateItemAutoAssigns(t *testing.T) {
	store := newFakeStore()
	id := seedItem(store, core.StatusUnassigned, "")
	svc := NewItemService(store, &fakeFileStore{}, nil)

	assignee := "Bristol Boilers"
	item, err := svc.UpdateItem(context.Background(), id, core.LineItemPatch{Assignee: &assignee})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if item.Status != core.StatusAssigned {
		t.Fatalf("status = %q, want Assigned", item.Status)
	}
	if item.Assignee != assignee {
		t.Fatalf("assignee = %q, want %q", item.Assignee, assignee)
	}
}

func TestUpdateItemExplicitStatusWins(t *testing.T) {
	store := newFakeStore()
	id := seedItem(store, core.StatusUnassigned, "")
	svc := NewItemService(store, &fakeFileStore{}, nil)

	assignee := "Bristol Boilers"
	status := core.StatusStarted
	item, err := svc.UpdateItem(context.Background(), id, core.LineItemPatch{Assignee: &assignee, Status: &status})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if item.Status != core.StatusStarted {
		t.Fatalf("status = %q, want Started", item.Status)
	}
}

func TestUpdateItemNoAutoAssignWhenAlreadyAssigned(t *testing.T) {
	store := newFakeStore()
	id := seedItem(store, core.StatusStarted, "Acme Flooring Ltd")
	svc := NewItemService(store, &fakeFileStore{}, nil)

	assignee := "Bristol Boilers"
	item, err := svc.UpdateItem(context.Background(), id, core.LineItemPatch{Assignee: &assignee})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if item.Status != core.StatusStarted {
		t.Fatalf("status = %q, want Started unchanged", item.Status)
	}
}

func TestUpdateItemCompletionPublishes(t *testing.T) {
	store := newFakeStore()
	id := seedItem(store, core.StatusStarted, "Bristol Boilers")
	publisher := &fakePublisher{}
	svc := NewItemService(store, &fakeFileStore{}, publisher)

	status := core.StatusCompleted
	if _, err := svc.UpdateItem(context.Background(), id, core.LineItemPatch{Status: &status}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if len(publisher.itemsPublished) != 1 || publisher.itemsPublished[0] != id {
		t.Fatalf("expected completion message for item %d, got %v", id, publisher.itemsPublished)
	}

	// Publishing is skipped for non-completion updates.
	category := "Gas"
	if _, err := svc.UpdateItem(context.Background(), id, core.LineItemPatch{Category: &category}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if len(publisher.itemsPublished) != 1 {
		t.Fatalf("unexpected extra message: %v", publisher.itemsPublished)
	}
}

func TestUpdateItemValidation(t *testing.T) {
	store := newFakeStore()
	id := seedItem(store, core.StatusUnassigned, "")
	svc := NewItemService(store, &fakeFileStore{}, nil)

	if _, err := svc.UpdateItem(context.Background(), id, core.LineItemPatch{}); !errors.Is(err, core.ErrEmptyPatch) {
		t.Fatalf("expected ErrEmptyPatch, got %v", err)
	}

	bad := core.Status("Done")
	if _, err := svc.UpdateItem(context.Background(), id, core.LineItemPatch{Status: &bad}); !errors.Is(err, core.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	status := core.StatusStarted
	if _, err := svc.UpdateItem(context.Background(), 999, core.LineItemPatch{Status: &status}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttachEvidence(t *testing.T) {
	store := newFakeStore()
	id := seedItem(store, core.StatusStarted, "Bristol Boilers")
	files := &fakeFileStore{}
	svc := NewItemService(store, files, nil)

	ev, err := svc.AttachEvidence(context.Background(), id, "photo", "before.jpg",
		strings.NewReader("jpeg bytes"))
	if err != nil {
		t.Fatalf("AttachEvidence: %v", err)
	}
	if ev.ID == 0 || ev.ItemID != id {
		t.Fatalf("unexpected evidence: %+v", ev)
	}
	if ev.SizeBytes != int64(len("jpeg bytes")) {
		t.Fatalf("size = %d", ev.SizeBytes)
	}
	if len(files.saved) != 1 {
		t.Fatalf("expected one saved file, got %v", files.saved)
	}
}

func TestOpenEvidence(t *testing.T) {
	store := newFakeStore()
	id := seedItem(store, core.StatusStarted, "Bristol Boilers")
	files := &fakeFileStore{}
	svc := NewItemService(store, files, nil)

	saved, err := svc.AttachEvidence(context.Background(), id, "photo", "before.jpg",
		strings.NewReader("jpeg bytes"))
	if err != nil {
		t.Fatalf("AttachEvidence: %v", err)
	}

	ev, rc, err := svc.OpenEvidence(context.Background(), saved.ID)
	if err != nil {
		t.Fatalf("OpenEvidence: %v", err)
	}
	defer rc.Close()
	if ev.Filename != "before.jpg" {
		t.Fatalf("filename = %q", ev.Filename)
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Fatalf("read back %q", data)
	}

	if _, _, err := svc.OpenEvidence(context.Background(), 999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttachEvidenceUnknownItem(t *testing.T) {
	store := newFakeStore()
	files := &fakeFileStore{}
	svc := NewItemService(store, files, nil)

	_, err := svc.AttachEvidence(context.Background(), 42, "photo", "x.jpg", strings.NewReader("a"))
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(files.saved) != 0 {
		t.Fatalf("no file should be written for unknown item, got %v", files.saved)
	}
}
