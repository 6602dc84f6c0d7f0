package testutil

import "testing"

func TestDefaultTestDBConfig(t *testing.T) {
	envKeys := []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"}

	tests := []struct {
		name string
		env  map[string]string
		want TestDBConfig
	}{
		{
			name: "defaults to local test database port 55432",
			env:  nil,
			want: TestDBConfig{
				Host:     "localhost",
				Port:     "55432",
				User:     "opsdesk",
				Password: "opsdesk",
				DBName:   "opsdesk",
			},
		},
		{
			name: "respects CI environment overrides",
			env: map[string]string{
				"TEST_DB_HOST": "postgres",
				"TEST_DB_PORT": "5432",
			},
			want: TestDBConfig{
				Host:     "postgres",
				Port:     "5432",
				User:     "opsdesk",
				Password: "opsdesk",
				DBName:   "opsdesk",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Empty values fall through to defaults, so blanking every key
			// isolates the test from the ambient environment.
			for _, key := range envKeys {
				t.Setenv(key, "")
			}
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			if got := DefaultTestDBConfig(); got != tt.want {
				t.Errorf("DefaultTestDBConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
