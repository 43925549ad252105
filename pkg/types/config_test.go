package types

import (
	"errors"
	"testing"
)

func TestTableConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  TableConfig
		wantErr error
	}{
		{
			name:    "empty name returns ErrTableNameEmpty",
			config:  TableConfig{Backend: BackendMemory},
			wantErr: ErrTableNameEmpty,
		},
		{
			name:    "empty backend returns ErrBackendEmpty",
			config:  TableConfig{Name: "people", Backend: ""},
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "unknown backend returns ErrBackendUnknown",
			config:  TableConfig{Name: "people", Backend: "postgres"},
			wantErr: ErrBackendUnknown,
		},
		{
			name:    "unknown sync strategy returns ErrSyncStrategyUnknown",
			config:  TableConfig{Name: "people", Backend: BackendMemory, Sync: "hourly"},
			wantErr: ErrSyncStrategyUnknown,
		},
		{
			name: "unknown format returns ErrFormatUnknown",
			config: TableConfig{Name: "people", Backend: BackendMemory,
				Connect: ConnectInfo{FileName: "people.xml", Format: "xml"}},
			wantErr: ErrFormatUnknown,
		},
		{
			name: "valid memory config",
			config: TableConfig{Name: "people", Backend: BackendMemory, KeyColumns: []string{"playerID"},
				Connect: ConnectInfo{Directory: "/tmp", FileName: "People.csv"}, Sync: SyncImmediate},
			wantErr: nil,
		},
		{
			name: "valid sqlite config",
			config: TableConfig{Name: "people", Backend: BackendSQLite, Commit: true,
				Connect: ConnectInfo{Database: "/tmp/lahman.db"}},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigValidate_DuplicateNames(t *testing.T) {
	cfg := Config{Tables: []TableConfig{
		{Name: "people", Backend: BackendMemory},
		{Name: "people", Backend: BackendSQLite},
	}}
	if err := cfg.Validate(); !errors.Is(err, ErrDuplicateTableName) {
		t.Fatalf("expected ErrDuplicateTableName, got %v", err)
	}
}

func TestGetSyncStrategy(t *testing.T) {
	if got := (TableConfig{}).GetSyncStrategy(); got != SyncManual {
		t.Errorf("default sync strategy = %q, want %q", got, SyncManual)
	}
	if got := (TableConfig{Sync: SyncOnClose}).GetSyncStrategy(); got != SyncOnClose {
		t.Errorf("sync strategy = %q, want %q", got, SyncOnClose)
	}
}
