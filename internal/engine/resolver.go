package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wanwatch/wanwatch-server/internal/models"
	"github.com/wanwatch/wanwatch-server/internal/storage"
)

// ErrUnresolved means a serial could not be mapped to an owning customer.
// It is a skip condition, not a failure: the triggering event is still
// marked processed.
var ErrUnresolved = errors.New("serial unresolved")

// resolveOwner maps a device serial to its owning customer. Resolution is
// strictly two-hop: serial -> device record -> owner customer id -> customer.
// A missing device, an owner id that is not a UUID, or a missing customer all
// yield ErrUnresolved; storage failures pass through as hard errors.
func resolveOwner(ctx context.Context, store storage.Store, serial string) (*models.CustomerDevice, *models.Customer, error) {
	devices, err := store.GetCustomerDevicesBySerial(ctx, serial)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup device by serial: %w", err)
	}
	if len(devices) == 0 {
		return nil, nil, fmt.Errorf("%w: no device with serial %s", ErrUnresolved, serial)
	}

	device := devices[0]

	if device.CustomerID == "" {
		return nil, nil, fmt.Errorf("%w: device %s has no owner", ErrUnresolved, serial)
	}

	customerID, err := uuid.Parse(device.CustomerID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: device %s owner id %q is not a valid id", ErrUnresolved, serial, device.CustomerID)
	}

	customer, err := store.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: no customer %s for serial %s", ErrUnresolved, customerID, serial)
		}
		return nil, nil, fmt.Errorf("lookup customer: %w", err)
	}

	return device, customer, nil
}
