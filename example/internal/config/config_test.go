package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		env     map[string]string
		wantErr assert.ErrorAssertionFunc
		want    func(t *testing.T, cfg Config)
	}{
		{
			name:    "given no flags, then uses defaults",
			wantErr: assert.NoError,
			want: func(t *testing.T, cfg Config) {
				assert.Equal(t, ":8080", cfg.Addr)
				assert.Equal(t, int32(4), cfg.MaxConns)
				assert.Equal(t, "primary", cfg.InstanceName)
				assert.False(t, cfg.DisableStatements)
				assert.Empty(t, cfg.OTLPEndpoint)
			},
		},
		{
			name:    "given flags, then flags win over defaults",
			args:    []string{"--addr", ":9090", "--max-conns", "8", "--disable-statements"},
			wantErr: assert.NoError,
			want: func(t *testing.T, cfg Config) {
				assert.Equal(t, ":9090", cfg.Addr)
				assert.Equal(t, int32(8), cfg.MaxConns)
				assert.True(t, cfg.DisableStatements)
			},
		},
		{
			name: "given environment variables, then they override defaults",
			env: map[string]string{
				"SENTINEL_INSTANCE":      "replica",
				"SENTINEL_MAX_CONNS":     "2",
				"SENTINEL_OTLP_ENDPOINT": "collector:4317",
			},
			wantErr: assert.NoError,
			want: func(t *testing.T, cfg Config) {
				assert.Equal(t, "replica", cfg.InstanceName)
				assert.Equal(t, int32(2), cfg.MaxConns)
				assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
			},
		},
		{
			name:    "given empty dsn, then returns error",
			args:    []string{"--dsn", ""},
			wantErr: assert.Error,
		},
		{
			name:    "given zero max conns, then returns error",
			args:    []string{"--max-conns", "0"},
			wantErr: assert.Error,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			cmd := &cobra.Command{Use: "test"}
			v := viper.New()
			require.NoError(t, Bind(cmd, v))
			require.NoError(t, cmd.Flags().Parse(tt.args))

			cfg, err := Load(v)

			tt.wantErr(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}
