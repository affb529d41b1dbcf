package hospitalization

import (
	"testing"
	"time"

	"github.com/vetora/vetora/pkg/api"
	"github.com/vetora/vetora/pkg/storage"
)

func TestCreateKennel(t *testing.T) {
	store := newStore(t)
	svc := newTestService(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	scope := storage.NewScope(store, clinicA)
	ctx := session(t, store, clinicA)

	k, err := svc.CreateKennel(ctx, scope, &api.KennelRequest{Name: "Isolation 1", Code: "ISO-1", Size: "large", DailyRate: 45.5})
	if err != nil {
		t.Fatalf("CreateKennel: %v", err)
	}
	if k.Status != api.KennelAvailable || k.TenantID != clinicA || k.DailyRate != 45.5 || !api.ValidateID(k.ID) {
		t.Errorf("kennel = %+v", k)
	}

	// Codes are unique per clinic.
	_, err = svc.CreateKennel(ctx, scope, &api.KennelRequest{Name: "Dup", Code: "ISO-1"})
	if apiErr := wantAPIError(t, err, api.CodeConflict); apiErr.Details["reason"] != api.ReasonKennelCodeTaken {
		t.Errorf("reason = %v", apiErr.Details["reason"])
	}
	if _, err := svc.CreateKennel(session(t, store, clinicB), storage.NewScope(store, clinicB), &api.KennelRequest{Name: "Iso", Code: "ISO-1"}); err != nil {
		t.Errorf("same code in another clinic: %v", err)
	}

	_, err = svc.CreateKennel(ctx, scope, &api.KennelRequest{Code: "X"})
	wantAPIError(t, err, api.CodeMissingFields)
}

func TestListKennels(t *testing.T) {
	store := newStore(t)
	svc := newTestService(time.Now())
	ctx := session(t, store, clinicA)
	scope := storage.NewScope(store, clinicA)

	all, err := svc.ListKennels(ctx, scope, "")
	if err != nil {
		t.Fatalf("ListKennels: %v", err)
	}
	if len(all) != 3 || all[0].Code != "A-01" || all[2].Code != "A-03" {
		t.Errorf("kennels = %v", all)
	}

	available, _ := svc.ListKennels(ctx, scope, "available")
	if len(available) != 2 {
		t.Errorf("got %d available kennels, want 2", len(available))
	}

	_, err = svc.ListKennels(ctx, scope, "broken")
	wantAPIError(t, err, api.CodeInvalidFormat)
}

func TestSetKennelStatus(t *testing.T) {
	store := newStore(t)
	svc := newTestService(time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC))
	ctx := session(t, store, clinicA)
	scope := storage.NewScope(store, clinicA)

	k, err := svc.SetKennelStatus(ctx, scope, kennelA1, "maintenance")
	if err != nil {
		t.Fatalf("SetKennelStatus: %v", err)
	}
	if k.Status != api.KennelMaintenance || kennelStatus(t, store, kennelA1) != "maintenance" {
		t.Errorf("kennel = %+v", k)
	}

	// Unchanged status is a no-op.
	if _, err := svc.SetKennelStatus(ctx, scope, kennelA1, "maintenance"); err != nil {
		t.Errorf("same status: %v", err)
	}

	if _, err := svc.Admit(ctx, scope, vet, admission(petA, kennelA2)); err != nil {
		t.Fatalf("Admit: %v", err)
	}
	_, err = svc.SetKennelStatus(ctx, scope, kennelA2, "available")
	if apiErr := wantAPIError(t, err, api.CodeConflict); apiErr.Details["reason"] != api.ReasonKennelOccupied {
		t.Errorf("reason = %v", apiErr.Details["reason"])
	}

	_, err = svc.SetKennelStatus(ctx, scope, kennelA1, "occupied")
	wantAPIError(t, err, api.CodeInvalidFormat)

	_, err = svc.SetKennelStatus(ctx, scope, kennelB1, "maintenance")
	wantAPIError(t, err, api.CodeForbidden)

	_, err = svc.SetKennelStatus(ctx, scope, missing, "maintenance")
	wantAPIError(t, err, api.CodeNotFound)

	_, err = svc.SetKennelStatus(ctx, scope, "", "")
	if apiErr := wantAPIError(t, err, api.CodeMissingFields); len(apiErr.Details["fields"].([]string)) != 2 {
		t.Errorf("fields = %v", apiErr.Details["fields"])
	}

	if kennelStatus(t, store, kennelB1) != "available" {
		t.Error("foreign kennel was modified")
	}
}
