package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/flexprice/parkingpermits/internal/domain/vehicle"
	ierr "github.com/flexprice/parkingpermits/internal/errors"
	"github.com/flexprice/parkingpermits/internal/integration/registry"
)

var _ registry.Client = (*MockRegistryClient)(nil)

// MockRegistryClient serves vehicles registered with AddVehicle
type MockRegistryClient struct {
	mu       sync.RWMutex
	vehicles map[string]vehicle.Vehicle
	owners   map[string]string
}

func NewMockRegistryClient() *MockRegistryClient {
	return &MockRegistryClient{
		vehicles: make(map[string]vehicle.Vehicle),
		owners:   make(map[string]string),
	}
}

// AddVehicle registers v. A non empty ownerID restricts lookups to that owner.
func (m *MockRegistryClient) AddVehicle(v vehicle.Vehicle, ownerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToUpper(v.RegistrationNumber)
	m.vehicles[key] = v
	m.owners[key] = ownerID
}

func (m *MockRegistryClient) LookupVehicle(ctx context.Context, registrationNumber, ownerID string) (vehicle.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := strings.ToUpper(strings.TrimSpace(registrationNumber))
	v, ok := m.vehicles[key]
	if !ok {
		return vehicle.Vehicle{}, ierr.NewError("vehicle not found").
			WithHintf("No vehicle registered as %s", key).
			Mark(ierr.ErrNotFound)
	}
	if owner := m.owners[key]; owner != "" && ownerID != "" && owner != ownerID {
		return vehicle.Vehicle{}, ierr.NewError("customer is not an owner or holder of the vehicle").
			WithHint("The vehicle is not registered to the customer").
			Mark(ierr.ErrPermissionDenied)
	}
	return v, nil
}
