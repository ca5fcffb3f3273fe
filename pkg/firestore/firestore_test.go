package firestore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/gcloud"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/stash"
	stashtest "github.com/zoobzio/stash/testing"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func setupFirestore(t *testing.T) *firestore.Client {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := gcloud.RunFirestore(ctx, "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators",
		gcloud.WithProjectID("test-project"),
	)
	if err != nil {
		t.Fatalf("failed to start firestore container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	conn, err := grpc.NewClient(container.URI,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to create grpc connection: %v", err)
	}

	client, err := firestore.NewClient(ctx, "test-project",
		option.WithGRPCConn(conn),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	return client
}

func TestStore_SetGetDelete(t *testing.T) {
	client := setupFirestore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	clock := clockz.NewFakeClock()
	store := New(client, "stash", WithClock(clock))

	if _, ok, err := store.Get(ctx, "users/42"); err != nil || ok {
		t.Fatalf("expected absent, got (%v, %v)", ok, err)
	}

	if err := store.Set(ctx, "users/42", []byte(`{"name":"ada"}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	snap, err := client.Collection("stash").Doc("users%2F42").Get(ctx)
	if err != nil {
		t.Fatalf("failed to get raw document: %v", err)
	}
	if snap.Data()["key"] != "users/42" {
		t.Errorf("expected original key stored, got %v", snap.Data()["key"])
	}
	ts, ok := snap.Data()["updated_at"].(time.Time)
	if diff := ts.Sub(clock.Now()); !ok || diff > time.Millisecond || diff < -time.Millisecond {
		t.Errorf("expected updated_at %v, got %v", clock.Now(), snap.Data()["updated_at"])
	}

	data, ok, err := store.Get(ctx, "users/42")
	if err != nil || !ok || string(data) != `{"name":"ada"}` {
		t.Errorf("unexpected Get() = (%q, %v, %v)", data, ok, err)
	}

	if err := store.Delete(ctx, "users/42"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "users/42"); err != nil {
		t.Errorf("Delete() of missing document error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, "users/42"); ok {
		t.Error("expected document deleted")
	}
}

func TestStore_CustomField(t *testing.T) {
	client := setupFirestore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store := New(client, "config", WithField("payload"))

	// A document written by another tool with a string field.
	if _, err := client.Collection("config").Doc("app").Set(ctx, map[string]interface{}{
		"payload": `{"port":8080}`,
	}); err != nil {
		t.Fatalf("failed to create document: %v", err)
	}

	data, ok, err := store.Get(ctx, "app")
	if err != nil || !ok || string(data) != `{"port":8080}` {
		t.Errorf("unexpected Get() = (%q, %v, %v)", data, ok, err)
	}
}

func TestStore_WithBindings(t *testing.T) {
	client := setupFirestore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	store := New(client, "stash")
	registry := stash.NewRegistry()

	a, err := stash.Bind[[]int](ctx, "scores", store, stash.WithRegistry(registry))
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	defer a.Close()
	b, err := stash.Bind[[]int](ctx, "scores", store, stash.WithRegistry(registry))
	if err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	defer b.Close()

	if _, err := a.Set(ctx, []int{3, 1, 2}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if v, ok := b.Value(); !ok || len(v) != 3 || v[0] != 3 {
		t.Errorf("expected [3 1 2], got (%v, %v)", v, ok)
	}
}

func TestStore_Conformance(t *testing.T) {
	client := setupFirestore(t)

	n := 0
	stashtest.RunStoreTests(t, func(t *testing.T) stash.Store {
		n++
		return New(client, fmt.Sprintf("conformance%d", n))
	})
}
