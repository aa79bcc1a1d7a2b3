package schemas_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/scout-cli/api/schemas"
)

func TestConsoleLogIsCritical(t *testing.T) {
	testCases := []struct {
		name string
		log  schemas.ConsoleLog
		want bool
	}{
		{
			name: "typeerror on undefined property",
			log:  schemas.ConsoleLog{Level: "error", Text: "TypeError: Cannot read properties of undefined (reading 'map')"},
			want: true,
		},
		{
			name: "plain api failure text is not critical",
			log:  schemas.ConsoleLog{Level: "error", Text: "API returned 500"},
			want: false,
		},
		{
			name: "critical pattern at warning level does not count",
			log:  schemas.ConsoleLog{Level: "warning", Text: "ReferenceError: foo is not defined"},
			want: false,
		},
		{
			name: "react hydration failure",
			log:  schemas.ConsoleLog{Level: "error", Text: "Hydration failed because the initial UI does not match"},
			want: true,
		},
		{
			name: "chunk load error",
			log:  schemas.ConsoleLog{Level: "error", Text: "ChunkLoadError: Loading chunk 42 failed"},
			want: true,
		},
		{
			name: "informational log",
			log:  schemas.ConsoleLog{Level: "info", Text: "app booted"},
			want: false,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.log.IsCritical())
		})
	}
}

func TestBugsBySeverity(t *testing.T) {
	report := schemas.ExplorationReport{
		Bugs: []schemas.Bug{
			{Severity: schemas.SeverityCritical, Title: "a"},
			{Severity: schemas.SeverityCritical, Title: "b"},
			{Severity: schemas.SeverityMedium, Title: "c"},
		},
	}
	counts := report.BugsBySeverity()
	assert.Equal(t, 2, counts[schemas.SeverityCritical])
	assert.Equal(t, 1, counts[schemas.SeverityMedium])
	assert.Equal(t, 0, counts[schemas.SeverityLow])
}
