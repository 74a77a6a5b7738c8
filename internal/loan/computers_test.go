package loan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-desk-backend/internal/model"
)

func TestService_DeleteComputer(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	createLoan(t, svc)

	var ve *ValidationError
	assert.ErrorAs(t, svc.DeleteComputer(ctx, tech, "pc-1"), &ve, "computer on loan")
	assert.ErrorIs(t, svc.DeleteComputer(ctx, tech, "pc-9"), ErrComputerNotFound)

	require.NoError(t, svc.DeleteComputer(ctx, tech, "pc-2"))
	cs, _ := svc.Computers(ctx)
	require.Len(t, cs, 1)
	assert.Equal(t, "pc-1", cs[0].ID)
}

func TestService_AddMaintenance(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)
	next := dayZero.Add(180 * day)

	c, err := svc.AddMaintenance(ctx, tech, "pc-2", Maintenance{Type: "cleaning", Description: "keyboard and fans", NextMaintenanceDate: &next})
	require.NoError(t, err)
	require.Len(t, c.MaintenanceHistory, 1)
	rec := c.MaintenanceHistory[0]
	assert.Equal(t, "cleaning", rec.Type)
	assert.Equal(t, tech.Name, rec.PerformedBy)
	assert.True(t, rec.Date.Equal(dayZero))
	require.NotNil(t, c.LastMaintenanceDate)
	assert.True(t, c.LastMaintenanceDate.Equal(dayZero))
	require.NotNil(t, c.NextMaintenanceDate)
	assert.True(t, c.NextMaintenanceDate.Equal(next))

	*clock = dayZero.Add(day)
	_, err = svc.AddMaintenance(ctx, tech, "pc-2", Maintenance{Description: "battery replaced"})
	require.NoError(t, err)

	_, err = svc.SaveComputer(ctx, tech, model.Computer{ID: "pc-2", Name: "PORT-02B", SerialNumber: "SN2"})
	require.NoError(t, err)
	stored := computer(t, svc, "pc-2")
	assert.Len(t, stored.MaintenanceHistory, 2, "editing a computer keeps its maintenance log")
	assert.Nil(t, stored.NextMaintenanceDate)
	assert.True(t, stored.LastMaintenanceDate.Equal(dayZero.Add(day)))

	var ve *ValidationError
	past := dayZero
	_, err = svc.AddMaintenance(ctx, tech, "pc-2", Maintenance{Description: "x", NextMaintenanceDate: &past})
	assert.ErrorAs(t, err, &ve)
	_, err = svc.AddMaintenance(ctx, tech, "pc-2", Maintenance{})
	assert.ErrorAs(t, err, &ve)
	_, err = svc.AddMaintenance(ctx, tech, "pc-9", Maintenance{Description: "x"})
	assert.ErrorIs(t, err, ErrComputerNotFound)
}
