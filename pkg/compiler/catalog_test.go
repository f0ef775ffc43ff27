package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/metadata/pkg/domain"
)

func TestBuildCatalog(t *testing.T) {
	now := time.Now()
	org, err := domain.NewOrganization("algebra", "client", now)
	require.NoError(t, err)
	game, err := domain.NewApp("game", org, "UTC", nil, now)
	require.NoError(t, err)

	email := param(t, "email", domain.TypeString, 2)
	email.SetGDPR(true, now)
	ev := levelUp(t)
	require.NoError(t, ev.AddParameters([]*domain.SchemaParameter{email}, now))
	require.NoError(t, ev.MarkSucceeded(now))
	pending, err := domain.NewGameSpecificEvent("game", "pending", "", "", now)
	require.NoError(t, err)
	foreign, err := domain.NewGameSpecificEvent("other", "foreign", "", "", now)
	require.NoError(t, err)
	require.NoError(t, foreign.MarkSucceeded(now))

	ip, err := domain.NewAtomicParameter("user_ipaddress", domain.TypeString, "", true)
	require.NoError(t, err)
	device := param(t, "device_id", domain.TypeString, 0)
	device.SetGDPR(true, now)
	embedded := eventContext(t, "ctx_device_context", device)
	standaloneSchema, err := domain.NewSchema(domain.ContextVendor, "ctx_purchase_context")
	require.NoError(t, err)
	standalone, err := domain.NewEventContext(standaloneSchema, false, now)
	require.NoError(t, err)

	commonEmail := param(t, "login_email", domain.TypeString, 0)
	commonEmail.SetGDPR(true, now)
	cs, err := domain.NewSchema("com.algebraai.gametuner.common", "login", commonEmail)
	require.NoError(t, err)
	common, err := domain.NewCommonEvent(cs)
	require.NoError(t, err)

	c := BuildCatalog([]*domain.App{game}, []*domain.Event{ev, pending, foreign},
		[]*domain.AtomicParameter{ip}, []*domain.EventContext{embedded, standalone}, []*domain.CommonEvent{common})

	assert.Equal(t, []string{"user_ipaddress"}, c.GDPRAtomicParameters)
	assert.Equal(t, map[string][]string{"ctx_device_context": {"device_id"}}, c.GDPRContextParameters)
	assert.Equal(t, map[string][]string{"login": {"login_email"}}, c.GDPREventParameters)
	assert.Len(t, c.EmbeddedContexts, 1)
	assert.Len(t, c.StandaloneContexts, 1)

	require.Len(t, c.Apps, 1)
	assert.Equal(t, []*domain.Event{ev}, c.Apps[0].Events)
	assert.Equal(t, map[string][]string{"level_up": {"email"}}, c.Apps[0].GDPREventParameters)
}
