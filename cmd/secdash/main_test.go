package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootAppliesAPIURLFlag(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--api-url", "http://api.test:9000", "-q", "version", "--offline"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "http://api.test:9000", viper.GetString("api.url"))
	assert.Contains(t, out.String(), "secdash Version: "+version)
	closeLogging()
}

func TestInitConfigReadsFrontendEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VITE_API_BASE_URL", "http://frontend.test:8000")

	root := &cobra.Command{Use: "secdash"}
	root.PersistentFlags().String("api-url", "", "")

	require.NoError(t, initConfig(root))
	assert.Equal(t, "http://frontend.test:8000", viper.GetString("api.url"))
	assert.Equal(t, "file", viper.GetString("storage.driver"))
	assert.Equal(t, "30m0s", viper.GetDuration("watch.timeout").String())
}

func TestInitConfigDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SECDASH_API_URL", "")
	t.Setenv("VITE_API_BASE_URL", "")

	root := &cobra.Command{Use: "secdash"}
	root.PersistentFlags().String("api-url", "", "")

	require.NoError(t, initConfig(root))
	assert.Equal(t, "http://localhost:8000", viper.GetString("api.url"))
	assert.Equal(t, "html", viper.GetString("report.default_format"))
}
