package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/deploy-engine/config"
)

const testRoster = `
clients:
  - id: C
    name: Client C
    jobTypes:
      - name: Fit-out
        payRate: 20
        clientCost: 35
sites:
  - id: S
    clientId: C
    startDate: 2024-03-04
    endDate: 2024-03-15
    maxOperatives: 2
    projectType: Fit-out
operatives:
  - id: O1
    firstName: Olive
    lastName: Oak
    certificates:
      - name: CSCS
        expiryDate: 2024-03-16
assignments:
  - id: A1
    operativeId: O1
    siteId: S
    startDate: 2024-03-04
    endDate: 2024-03-15
    status: DEPLOYED
`

func writeRoster(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRoster), 0o600))
	return path
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReportCmd_PrintsDashboard(t *testing.T) {
	out, err := run(t, reportCmd(), "--roster", writeRoster(t), "--today", "2024-03-06")

	require.NoError(t, err)
	assert.Contains(t, out, "Dashboard as of 2024-03-06 (week 2024-03-04 to 2024-03-10)")
	assert.Contains(t, out, "Deployed now:   1")
	assert.Contains(t, out, "Weekly profit:  105.00")
	assert.Contains(t, out, "partial")
	assert.Contains(t, out, "Olive Oak")
}

func TestCheckComplianceCmd(t *testing.T) {
	path := writeRoster(t)

	out, err := run(t, checkComplianceCmd(), "--roster", path, "--operative", "O1", "--today", "2024-03-06")
	require.NoError(t, err)
	assert.Contains(t, out, "Overall:  attention")
	assert.Contains(t, out, "CSCS: Expiring in 10 days")

	_, err = run(t, checkComplianceCmd(), "--roster", path, "--operative", "ghost")
	assert.Error(t, err)

	_, err = run(t, checkComplianceCmd(), "--roster", path, "--operative", "O1", "--today", "06/03/2024")
	assert.Error(t, err)
}

func TestApplyFlags_OnlyChangedFlagsOverride(t *testing.T) {
	cmd := serveCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--port", "3000", "--no-roll"}))
	cfg, err := config.FromMap(nil)
	require.NoError(t, err)

	applyFlags(cmd, &cfg)

	assert.Equal(t, 3000, cfg.Port)
	assert.False(t, cfg.RollEnabled)
	assert.Equal(t, "sqlite", cfg.Store)
	assert.Equal(t, 42, cfg.HorizonDays)
}

func TestApplyFlags_MongoURIFromFlagSatisfiesEnvStore(t *testing.T) {
	// GIVEN: the environment picks mongo without a uri
	cfg, err := config.FromMap(map[string]string{"STORE": "mongo"})
	require.NoError(t, err)
	cmd := serveCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--mongo-uri", "mongodb://localhost:27017"}))

	// WHEN
	applyFlags(cmd, &cfg)

	// THEN
	assert.NoError(t, cfg.Validate())
}

func TestApplyFlags_StoreIsNormalized(t *testing.T) {
	cmd := serveCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--store", " Memory"}))
	cfg, err := config.FromMap(nil)
	require.NoError(t, err)

	applyFlags(cmd, &cfg)

	assert.Equal(t, config.StoreMemory, cfg.Store)
	assert.NoError(t, cfg.Validate())
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	_, err := newLogger(config.Config{LogLevel: "loud"})
	assert.Error(t, err)

	logger, err := newLogger(config.Config{LogLevel: "debug", Dev: true})
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

const asbestosRoster = `
sites:
  - id: MILL
    startDate: 2024-03-10
    endDate: 2024-03-20
    projectType: Asbestos Removal
operatives:
  - id: KAT
    firstName: Kat
    certificates:
      - {name: CSCS, expiryDate: 2025-03-01}
      - {name: Medical, expiryDate: 2025-03-01}
      - {name: Manual Handling, expiryDate: 2025-03-01}
      - {name: Working at Height, expiryDate: 2025-03-01}
      - {name: First Aid, expiryDate: 2025-03-01}
      - {name: Asbestos Awareness, expiryDate: 2025-03-01, type: ASBESTOS}
      - {name: Licensed Asbestos Removal, expiryDate: 2025-03-01, type: ASBESTOS}
      - {name: Face Fit Test, expiryDate: 2025-03-01, type: ASBESTOS}
      - {name: Asbestos Medical, expiryDate: 2025-03-01, type: ASBESTOS}
  - id: LEE
    firstName: Lee
    certificates:
      - {name: CSCS, expiryDate: 2025-03-01}
      - {name: Medical, expiryDate: 2025-03-01}
      - {name: Manual Handling, expiryDate: 2025-03-01}
      - {name: Working at Height, expiryDate: 2025-03-01}
      - {name: First Aid, expiryDate: 2025-03-01}
`

func TestCheckComplianceCmd_AsbestosSiteKeepsGeneralCertificates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asbestos.yaml")
	require.NoError(t, os.WriteFile(path, []byte(asbestosRoster), 0o600))

	// GIVEN: an operative holding both sets
	out, err := run(t, checkComplianceCmd(), "--roster", path, "--operative", "KAT", "--site", "MILL", "--today", "2024-03-06")

	// THEN: general certificates still count on an asbestos site
	require.NoError(t, err)
	assert.Contains(t, out, "Overall:  compliant")
	assert.NotContains(t, out, "missing")

	// GIVEN: an operative holding only the general set
	out, err = run(t, checkComplianceCmd(), "--roster", path, "--operative", "LEE", "--site", "MILL", "--today", "2024-03-06")

	// THEN: only the asbestos set is missing
	require.NoError(t, err)
	assert.Contains(t, out, "Overall:  attention")
	assert.Contains(t, out, "Face Fit Test")
	assert.NotContains(t, out, "CSCS")
}
