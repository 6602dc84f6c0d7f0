package workflowtest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
)

// TestWorkflowTestOptions tests the option builders.
func TestWorkflowTestOptions(t *testing.T) {
	opts := DefaultWorkflowOptions()
	assert.False(t, opts.EnableRedis)
	assert.Nil(t, opts.RepositoryProvider)

	redisOpts := RedisWorkflowOptions()
	assert.True(t, redisOpts.EnableRedis)
	assert.Nil(t, redisOpts.CacheProvider)
}

func TestSessionFixture(t *testing.T) {
	sess := sessionFixture("wf-manager", "ops.manager", domainauth.RoleManager)

	assert.Equal(t, "wf-manager", sess.ID)
	assert.Equal(t, "ops.manager", sess.UserID)
	assert.Equal(t, "ops.manager@meridianbank.example", sess.Email)
	assert.Equal(t, domainauth.RoleManager, sess.Role)
	assert.False(t, sess.ExpiresAt.IsZero())
}

// TestSampleLedgerCollections pins the stub payloads to the catalog's source
// paths and verifies they parse as top-level arrays, the shape the real
// ledger serves.
func TestSampleLedgerCollections(t *testing.T) {
	collections := SampleLedgerCollections()

	assert.Contains(t, collections, "/v1/accounts")
	assert.Contains(t, collections, "/v1/cases")

	var accounts []map[string]any
	assert.NoError(t, json.Unmarshal([]byte(collections["/v1/accounts"]), &accounts))
	assert.Len(t, accounts, 5)
	assert.Equal(t, "acc-001", accounts[0]["id"])

	var cases []map[string]any
	assert.NoError(t, json.Unmarshal([]byte(collections["/v1/cases"]), &cases))
	assert.Len(t, cases, 3)
}

func TestParseAttachmentFilename(t *testing.T) {
	tests := []struct {
		name        string
		disposition string
		want        string
	}{
		{
			name:        "standard attachment",
			disposition: `attachment; filename="accounts-20250601-120000.csv"`,
			want:        "accounts-20250601-120000.csv",
		},
		{
			name:        "no filename",
			disposition: "inline",
			want:        "",
		},
		{
			name:        "unterminated quote keeps rest",
			disposition: `attachment; filename="dangling.csv`,
			want:        "dangling.csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAttachmentFilename(tt.disposition))
		})
	}
}
