package cmd

import (
	"context"
	"testing"

	"github.com/quatton/qgate/pkg/qapi/services/store"
)

func TestDevStoreGrantsResourcesOnSignIn(t *testing.T) {
	ctx := context.Background()
	st, err := newDevStore(ctx, []string{"local://", "k8s://default"})
	if err != nil {
		t.Fatalf("new dev store: %v", err)
	}

	user, err := st.FindOrCreateUser(ctx, store.Identity{Provider: "keycloak", ProviderID: "sub-1", Login: "alice"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}

	resources, err := st.ResourcesForUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("resources: %v", err)
	}
	if len(resources) != 2 || resources[0].Host != "local://" {
		t.Fatalf("unexpected resources %+v", resources)
	}

	// Signing in again does not duplicate grants.
	if _, err := st.FindOrCreateUser(ctx, store.Identity{Provider: "keycloak", ProviderID: "sub-1", Login: "alice"}); err != nil {
		t.Fatalf("second sign in: %v", err)
	}
	if again, _ := st.ResourcesForUser(ctx, user.ID); len(again) != 2 {
		t.Fatalf("grants duplicated: %d", len(again))
	}
}
