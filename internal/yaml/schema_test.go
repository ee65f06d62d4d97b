package yaml

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateSchemaHeader_Valid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plan.yaml")
	os.WriteFile(path, []byte("schema_version: 1\nfile_type: plan\n"), 0644)

	if err := ValidateSchemaHeader(path, "plan"); err != nil {
		t.Errorf("expected valid header: %v", err)
	}
	// Empty expectation accepts any known file type
	if err := ValidateSchemaHeader(path, ""); err != nil {
		t.Errorf("expected valid header with no expectation: %v", err)
	}
}

func TestValidateSchemaHeader_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{"missing_version", "file_type: plan\n", "plan"},
		{"future_version", "schema_version: 99\nfile_type: plan\n", "plan"},
		{"missing_file_type", "schema_version: 1\n", "plan"},
		{"unknown_file_type", "schema_version: 1\nfile_type: ledger\n", ""},
		{"type_mismatch", "schema_version: 1\nfile_type: closure_record\n", "plan"},
		{"not_yaml", "{{{{\n", "plan"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateSchemaHeaderFromBytes([]byte(tc.content), tc.expected); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}
