// Command demo walks through the kennel admission workflow in-process:
// a seeded memory store, one clinic, an admission, a refused second
// admission into the same kennel, a cross-clinic attempt and a discharge.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/vetora/vetora/pkg/api"
	"github.com/vetora/vetora/pkg/hospitalization"
	"github.com/vetora/vetora/pkg/storage"
	"github.com/vetora/vetora/pkg/storage/memory"
)

const seed = `
pets:
  - {id: 5e1b7a20-0c4d-4e8f-9a3b-2c1d0e9f8a01, tenant_id: demo-clinic, name: Biscuit, species: dog}
  - {id: 5e1b7a20-0c4d-4e8f-9a3b-2c1d0e9f8a02, tenant_id: demo-clinic, name: Pepper, species: cat}
kennels:
  - {id: 7c3d9e40-1a2b-4c5d-8e6f-0a1b2c3d4e01, tenant_id: demo-clinic, code: K-01, name: Kennel 1, status: available}
  - {id: 7c3d9e40-1a2b-4c5d-8e6f-0a1b2c3d4e02, tenant_id: other-clinic, code: K-01, name: Kennel 1, status: available}
`

const (
	biscuit       = "5e1b7a20-0c4d-4e8f-9a3b-2c1d0e9f8a01"
	pepper        = "5e1b7a20-0c4d-4e8f-9a3b-2c1d0e9f8a02"
	kennel        = "7c3d9e40-1a2b-4c5d-8e6f-0a1b2c3d4e01"
	foreignKennel = "7c3d9e40-1a2b-4c5d-8e6f-0a1b2c3d4e02"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "demo failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fmt.Println("=== vetora admission workflow demo ===")
	fmt.Println()

	ctx := context.Background()
	store := memory.New(
		memory.WithUnique(hospitalization.HospitalizationsCollection, storage.TenantColumn, "hospitalization_number"),
		memory.WithUnique(hospitalization.KennelsCollection, storage.TenantColumn, "code"),
	)
	n, err := store.LoadSeed(ctx, []byte(seed))
	if err != nil {
		return err
	}
	fmt.Printf("[1] Seeded %d records\n", n)

	vet := &api.Profile{ID: "demo-vet", TenantID: "demo-clinic", Role: api.RoleVet, IsActive: true}
	ctx, err = storage.ApplySession(ctx, store, vet.TenantID, string(vet.Role))
	if err != nil {
		return err
	}
	scope := storage.NewScope(store, vet.TenantID)
	svc := hospitalization.NewService()

	// 2. Validation happens before storage is touched.
	fmt.Println("\n[2] Validation:")
	if apiErr := api.ValidateAdmission(&api.AdmissionRequest{PetID: biscuit}); apiErr != nil {
		fmt.Printf("    %s: %s\n", apiErr.Code, apiErr.Message)
	}

	// 3. Admit.
	h, err := svc.Admit(ctx, scope, vet, &api.AdmissionRequest{
		PetID:               biscuit,
		KennelID:            kennel,
		HospitalizationType: string(api.TypeSurgical),
		AdmissionDiagnosis:  "Cruciate ligament repair",
		AcuityLevel:         string(api.AcuityHigh),
	})
	if err != nil {
		return err
	}
	data, _ := json.MarshalIndent(h, "", "  ")
	fmt.Printf("\n[3] Admitted:\n%s\n", data)

	// 4. The kennel is now occupied.
	fmt.Println("\n[4] Second admission into the same kennel:")
	_, err = svc.Admit(ctx, scope, vet, &api.AdmissionRequest{
		PetID:               pepper,
		KennelID:            kennel,
		HospitalizationType: string(api.TypeObservation),
		AdmissionDiagnosis:  "Dehydration",
	})
	printError(err)

	// 5. Another clinic's kennel is off limits.
	fmt.Println("\n[5] Admission into another clinic's kennel:")
	_, err = svc.Admit(ctx, scope, vet, &api.AdmissionRequest{
		PetID:               pepper,
		KennelID:            foreignKennel,
		HospitalizationType: string(api.TypeObservation),
		AdmissionDiagnosis:  "Dehydration",
	})
	printError(err)

	// 6. Discharge releases the kennel.
	done, err := svc.Discharge(ctx, scope, vet, h.ID, &api.DischargeRequest{
		Status:                string(api.HospitalizationDischarged),
		DischargeInstructions: "Strict rest for six weeks",
	})
	if err != nil {
		return err
	}
	kennels, err := svc.ListKennels(ctx, scope, "")
	if err != nil {
		return err
	}
	fmt.Printf("\n[6] Discharged %s at %s, kennel %s is %s\n",
		done.Number, done.DischargedAt.Format("15:04:05"), kennels[0].Code, kennels[0].Status)

	// 7. State machine transitions.
	fmt.Println("\n[7] Hospitalization transitions:")
	transitions := []struct {
		from, to api.HospitalizationStatus
	}{
		{api.HospitalizationActive, api.HospitalizationDischarged},
		{api.HospitalizationActive, api.HospitalizationTransferred},
		{api.HospitalizationDischarged, api.HospitalizationActive},
		{api.HospitalizationDeceased, api.HospitalizationDischarged},
	}
	for _, t := range transitions {
		if apiErr := api.ValidateHospitalizationTransition(t.from, t.to); apiErr != nil {
			fmt.Printf("    %s -> %s: BLOCKED (%s)\n", t.from, t.to, apiErr.Message)
		} else {
			fmt.Printf("    %s -> %s: OK\n", t.from, t.to)
		}
	}

	fmt.Println("\n=== demo complete ===")
	return nil
}

func printError(err error) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		fmt.Printf("    unexpected result: %v\n", err)
		return
	}
	fmt.Printf("    %s (%d): %s", apiErr.Code, apiErr.Status, apiErr.Message)
	if reason, ok := apiErr.Details["reason"]; ok {
		fmt.Printf(" [%v]", reason)
	}
	fmt.Println()
}
