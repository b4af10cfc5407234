package lauradb

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/mnohosten/laura-feed/pkg/database"
	"github.com/mnohosten/laura-feed/pkg/feed"
)

func setupTestSource(t *testing.T) (*Source, string) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "lauradb-adapter-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	source, err := Open(database.DefaultConfig(tmpDir), "testdb")
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to open source: %v", err)
	}
	return source, tmpDir
}

func cleanupTestSource(source *Source, tmpDir string) {
	source.Close()
	os.RemoveAll(tmpDir)
}

func waitForMessage(t *testing.T, ch <-chan feed.Message, timeout time.Duration) feed.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatal("timed out waiting for a delivered message")
		return nil
	}
}

// waitForActive waits until sub's task is RUNNING, i.e. its change stream
// is open, so that a write made afterwards is observed by it.
func waitForActive(t *testing.T, sub *feed.Subscription, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !sub.IsActive() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the subscription to become active")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestContainerDeliversInsertAfterStart exercises spec scenario 1: start the
// container, then insert, then receive.
func TestContainerDeliversInsertAfterStart(t *testing.T) {
	source, tmpDir := setupTestSource(t)
	defer cleanupTestSource(source, tmpDir)

	container := feed.NewContainer(source, feed.JSONConverter{}, nil, nil)
	container.Start()
	defer container.Stop()

	messages := make(chan feed.Message, 4)
	sub, err := container.Register(feed.NewChangeStreamOptions("users").Build(),
		func(msg feed.Message) { messages <- msg }, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer sub.Cancel()
	waitForActive(t, sub, 2*time.Second)

	if _, err := source.InsertOne("users", map[string]interface{}{"_id": "u1", "name": "Alice"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	msg := waitForMessage(t, messages, 2*time.Second)
	body, err := msg.Body()
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	doc, ok := body.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map body, got %T", body)
	}
	if doc["name"] != "Alice" {
		t.Errorf("expected name Alice, got %v", doc["name"])
	}
}

// TestContainerStopHaltsDelivery exercises spec scenario 2: after Stop, a
// subsequent write produces no further delivery even though the write
// itself succeeds.
func TestContainerStopHaltsDelivery(t *testing.T) {
	source, tmpDir := setupTestSource(t)
	defer cleanupTestSource(source, tmpDir)

	container := feed.NewContainer(source, feed.JSONConverter{}, nil, nil)
	container.Start()

	messages := make(chan feed.Message, 4)
	sub, err := container.Register(feed.NewChangeStreamOptions("users").Build(),
		func(msg feed.Message) { messages <- msg }, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer sub.Cancel()
	waitForActive(t, sub, 2*time.Second)

	if _, err := source.InsertOne("users", map[string]interface{}{"_id": "u1", "name": "Alice"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	waitForMessage(t, messages, 2*time.Second)

	container.Stop()

	if _, err := source.InsertOne("users", map[string]interface{}{"_id": "u2", "name": "Bob"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	select {
	case msg := <-messages:
		t.Fatalf("expected no delivery after Stop, got %v", msg.Raw())
	case <-time.After(300 * time.Millisecond):
	}

	if sub.IsActive() {
		t.Error("expected subscription to be inactive after container Stop")
	}
}

// TestRegisterAfterStartDeliversImmediately exercises spec scenario 3: a
// subscription registered after the container is already running starts
// delivering without a further Start call.
func TestRegisterAfterStartDeliversImmediately(t *testing.T) {
	source, tmpDir := setupTestSource(t)
	defer cleanupTestSource(source, tmpDir)

	container := feed.NewContainer(source, feed.JSONConverter{}, nil, nil)
	container.Start()
	defer container.Stop()

	messages := make(chan feed.Message, 4)
	sub, err := container.Register(feed.NewChangeStreamOptions("late").Build(),
		func(msg feed.Message) { messages <- msg }, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer sub.Cancel()
	waitForActive(t, sub, 2*time.Second)

	if _, err := source.InsertOne("late", map[string]interface{}{"_id": "l1", "x": 1}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	waitForMessage(t, messages, 2*time.Second)
}

// typedDoc is the target type for scenario 4's typed conversion test.
type typedDoc struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// TestTypedConversionDeliversTargetType exercises spec scenario 4: a
// subscription with a non-nil target type receives a converted value of
// that type from Body().
func TestTypedConversionDeliversTargetType(t *testing.T) {
	source, tmpDir := setupTestSource(t)
	defer cleanupTestSource(source, tmpDir)

	container := feed.NewContainer(source, feed.JSONConverter{}, nil, nil)
	container.Start()
	defer container.Stop()

	messages := make(chan feed.Message, 4)
	target := reflect.TypeOf(typedDoc{})
	sub, err := container.Register(feed.NewChangeStreamOptions("users").Build(),
		func(msg feed.Message) { messages <- msg }, target)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer sub.Cancel()
	waitForActive(t, sub, 2*time.Second)

	if _, err := source.InsertOne("users", map[string]interface{}{"_id": "u3", "name": "Carol"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	msg := waitForMessage(t, messages, 2*time.Second)
	body, err := msg.Body()
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	typed, ok := body.(typedDoc)
	if !ok {
		t.Fatalf("expected typedDoc body, got %T", body)
	}
	if typed.Name != "Carol" {
		t.Errorf("expected name Carol, got %q", typed.Name)
	}
}

// TestResumeTokenResumesFromLastEvent exercises spec scenario 5: a second
// change stream opened with the resume token from the first event observes
// only events after it.
func TestResumeTokenResumesFromLastEvent(t *testing.T) {
	source, tmpDir := setupTestSource(t)
	defer cleanupTestSource(source, tmpDir)

	coll := source.Collection("resumable")

	cur, err := coll.Watch(context.Background(), nil, feed.ChangeStreamCursorOptions{})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if _, err := source.InsertOne("resumable", map[string]interface{}{"_id": "r1"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if _, err := source.InsertOne("resumable", map[string]interface{}{"_id": "r2"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	var firstID interface{}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		doc, ok, err := cur.TryNext(context.Background())
		if err != nil {
			t.Fatalf("TryNext: %v", err)
		}
		if ok {
			firstID = doc["_id"]
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if firstID == nil {
		t.Fatal("timed out waiting for first event")
	}
	resumeAt, ok := firstID.(map[string]interface{})
	if !ok {
		t.Fatalf("expected resume token shape, got %T", firstID)
	}
	cur.Close(context.Background())

	if _, err := source.InsertOne("resumable", map[string]interface{}{"_id": "r3"}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	resumed, err := coll.Watch(context.Background(), nil, feed.ChangeStreamCursorOptions{ResumeAfter: feed.ResumeToken(resumeAt)})
	if err != nil {
		t.Fatalf("Watch (resumed): %v", err)
	}
	defer resumed.Close(context.Background())

	var seen []interface{}
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(seen) < 2 {
		doc, ok, err := resumed.TryNext(context.Background())
		if err != nil {
			t.Fatalf("TryNext (resumed): %v", err)
		}
		if ok {
			seen = append(seen, doc["documentKey"])
		} else {
			time.Sleep(10 * time.Millisecond)
		}
	}
	if len(seen) != 2 {
		t.Fatalf("expected to resume into exactly the 2 events after the first, got %d: %v", len(seen), seen)
	}
}

// TestUpdateLookupPopulatesFullDocument exercises spec scenario 6: with a
// typed target (forcing UPDATE_LOOKUP), an update event's fullDocument is
// populated from the live collection, not left empty.
func TestUpdateLookupPopulatesFullDocument(t *testing.T) {
	source, tmpDir := setupTestSource(t)
	defer cleanupTestSource(source, tmpDir)

	container := feed.NewContainer(source, feed.JSONConverter{}, nil, nil)
	container.Start()
	defer container.Stop()

	if _, err := source.InsertOne("users", map[string]interface{}{"_id": "u4", "name": "Dave", "age": 1}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	messages := make(chan feed.Message, 4)
	target := reflect.TypeOf(typedDoc{})
	sub, err := container.Register(feed.NewChangeStreamOptions("users").Build(),
		func(msg feed.Message) { messages <- msg }, target)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer sub.Cancel()
	waitForActive(t, sub, 2*time.Second)

	if err := source.UpdateOne("users", map[string]interface{}{"_id": "u4"},
		map[string]interface{}{"$set": map[string]interface{}{"age": 2}}); err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}

	msg := waitForMessage(t, messages, 2*time.Second)
	body, err := msg.Body()
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	typed, ok := body.(typedDoc)
	if !ok {
		t.Fatalf("expected typedDoc body, got %T", body)
	}
	if typed.Name != "Dave" {
		t.Errorf("expected update-lookup full document to carry name Dave, got %q", typed.Name)
	}
}

// TestDefaultFullDocumentLeavesUpdateBodyEmpty exercises the other half of
// spec scenario 6: a generic document target (nil) with no explicit
// full-document lookup resolves to FullDocumentDefault, so an update
// event's fullDocument is never populated and the message body is null.
func TestDefaultFullDocumentLeavesUpdateBodyEmpty(t *testing.T) {
	source, tmpDir := setupTestSource(t)
	defer cleanupTestSource(source, tmpDir)

	container := feed.NewContainer(source, feed.JSONConverter{}, nil, nil)
	container.Start()
	defer container.Stop()

	if _, err := source.InsertOne("users", map[string]interface{}{"_id": "u5", "name": "Erin", "age": 1}); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	messages := make(chan feed.Message, 4)
	sub, err := container.Register(feed.NewChangeStreamOptions("users").Build(),
		func(msg feed.Message) { messages <- msg }, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	defer sub.Cancel()
	waitForActive(t, sub, 2*time.Second)

	if err := source.UpdateOne("users", map[string]interface{}{"_id": "u5"},
		map[string]interface{}{"$set": map[string]interface{}{"age": 2}}); err != nil {
		t.Fatalf("UpdateOne: %v", err)
	}

	msg := waitForMessage(t, messages, 2*time.Second)
	body, err := msg.Body()
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	if body != nil {
		t.Errorf("expected a null body under the default full-document policy, got %#v", body)
	}
}
