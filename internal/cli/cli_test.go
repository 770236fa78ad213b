package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/lossledger/internal/model"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

const russiaPage = `
<html><body>
<div class="post-body entry-content" itemprop="articleBody">
  <div><p>About this list</p></div>
  <div>
    <h3>Tanks (2, of which destroyed: 1, captured: 1)</h3>
    <ul>
      <li><img src="https://flags.test/ru.png"> 2 T-72B3:
        <a href="https://i.postimg.cc/a.jpg">(1, destroyed)</a>
        <a href="https://i.postimg.cc/b.jpg">(2, captured)</a>
      </li>
    </ul>
  </div>
</div>
</body></html>`

func TestLoadConfig_Defaults(t *testing.T) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(t.TempDir())

	c, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), c)
}

func TestLoadConfig_RoundTripsDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, writeDefaultConfig(path))

	v := viper.New()
	configureViper(v, path)
	c, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), c)

	assert.Error(t, writeDefaultConfig(path), "existing file is not overwritten")
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
http:
  timeout: 45s
rate_limiting:
  requests_per_second: 0.5
pages:
  - url: https://example.test/losses.html
    country: Russia
    section_index: 3
`), 0o644))

	t.Setenv("LOSSLEDGER_OUTPUT_FORMAT", "csv")

	v := viper.New()
	configureViper(v, path)
	c, err := LoadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 45*time.Second, c.HTTP.Timeout)
	assert.Equal(t, 0.5, c.RateLimiting.RequestsPerSecond)
	assert.Equal(t, "csv", c.Output.Format)
	assert.Equal(t, []model.PageConfig{
		{URL: "https://example.test/losses.html", Country: "Russia", SectionIndex: 3},
	}, c.Pages)

	// untouched keys keep their defaults
	assert.Equal(t, model.DefaultConfig().HTTP.UserAgent, c.HTTP.UserAgent)
	assert.Equal(t, model.DefaultConfig().Normalize.StatusKeywords, c.Normalize.StatusKeywords)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	v := viper.New()
	configureViper(v, filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig(v)
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	l, err := InitLogger(model.LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))

	l, err = InitLogger(model.LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	_, err = InitLogger(model.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestOutputFlags_AsOfDate(t *testing.T) {
	now := time.Date(2024, 3, 1, 17, 30, 0, 0, time.FixedZone("X", 3*3600))

	got, err := (&outputFlags{}).asOfDate(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = (&outputFlags{asOf: "2023-12-31"}).asOfDate(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), got)

	_, err = (&outputFlags{asOf: "31/12/2023"}).asOfDate(now)
	assert.Error(t, err)
}

func TestOutputFlags_Apply(t *testing.T) {
	c := model.DefaultConfig()
	(&outputFlags{format: "csv", workers: 9}).apply(c)
	assert.Equal(t, "csv", c.Output.Format)
	assert.Equal(t, model.DefaultConfig().Output.Path, c.Output.Path)
	assert.Equal(t, 9, c.Concurrency.Workers)
}

func TestParseCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, writeDefaultConfig(configPath))
	page := filepath.Join(dir, "russia.html")
	require.NoError(t, os.WriteFile(page, []byte(russiaPage), 0o644))
	out := filepath.Join(dir, "losses.csv")

	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{
		"parse", page,
		"--config", configPath,
		"--country", "Russia",
		"--section", "1",
		"--format", "csv",
		"--output", out,
		"--as-of", "2024-03-01",
		"--summary",
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, Execute())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "country,category,model,"))
	assert.True(t, strings.HasPrefix(lines[1], "Russia,Tanks,T-72B3,"))
	assert.Contains(t, lines[2], "2024-03-01T00:00:00Z")

	// the summary lists the flag lookups that missed the built-in map
	assert.Contains(t, stderr.String(), "unmapped production flags detected")
}

func TestVersionCommand(t *testing.T) {
	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetArgs([]string{"version", "--config", writeTempConfig(t)})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	require.NoError(t, Execute())
	assert.Equal(t, "lossledger v"+Version+"\n", stdout.String())
}

func writeTempConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, writeDefaultConfig(path))
	return path
}
