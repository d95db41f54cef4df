// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/pagekit/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) Sync() error { return nil }

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestNew(t *testing.T) {
	t.Run("console logger with colors", func(t *testing.T) {
		sink := &syncBuffer{}
		logger := New(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "pagekit",
			Colors:      config.ColorConfig{Info: "green"},
		}, sink)

		logger.Named("page").Info("Clicking element", zap.String("selector", "#go"))

		out := sink.String()
		assert.Contains(t, out, colorGreen+"INFO"+colorReset)
		assert.Contains(t, out, "pagekit.page.")
		assert.Contains(t, out, "Clicking element")
		assert.Contains(t, out, `"selector": "#go"`)
	})

	t.Run("uncolored level is printed plain", func(t *testing.T) {
		sink := &syncBuffer{}
		logger := New(config.LoggerConfig{Level: "debug", Format: "console"}, sink)
		logger.Warn("retrying")
		assert.Contains(t, sink.String(), "\tWARN\t")
		assert.NotContains(t, sink.String(), colorReset)
	})

	t.Run("json logger", func(t *testing.T) {
		sink := &syncBuffer{}
		logger := New(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, sink)
		logger.Warn("Attempt failed", zap.Int("attempt", 1))

		var entry map[string]interface{}
		require.NoError(t, jsoniter.UnmarshalFromString(sink.String(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "Attempt failed", entry["msg"])
		assert.Equal(t, float64(1), entry["attempt"])
	})

	t.Run("level filtering and bad level fallback", func(t *testing.T) {
		sink := &syncBuffer{}
		logger := New(config.LoggerConfig{Level: "not-a-level", Format: "json"}, sink)
		logger.Debug("hidden")
		logger.Info("shown")
		assert.NotContains(t, sink.String(), "hidden")
		assert.Contains(t, sink.String(), "shown")
	})

	t.Run("writes to a rotated log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pagekit.log")
		logger := New(config.LoggerConfig{
			Level:   "debug",
			Format:  "console",
			LogFile: path,
			MaxSize: 1,
		}, zapcore.AddSync(&bytes.Buffer{}))

		logger.Error("This should go to the file.")
		_ = logger.Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"This should go to the file."`)
	})
}

func TestInitialize(t *testing.T) {
	t.Cleanup(ResetForTest)

	t.Run("only initializes once", func(t *testing.T) {
		ResetForTest()
		sink := &syncBuffer{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"}, sink)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, sink)
		second := GetLogger()

		assert.Same(t, first, second)
		second.Info("test")
		Sync()

		assert.True(t, strings.Contains(sink.String(), "First"))
		assert.False(t, strings.Contains(sink.String(), "Second"))
	})

	t.Run("global logger is returned after initialization", func(t *testing.T) {
		ResetForTest()
		Initialize(config.LoggerConfig{Level: "info"}, &syncBuffer{})
		assert.Same(t, globalLogger.Load(), GetLogger())
	})
}

func TestGetLogger_Fallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	assert.Nil(t, globalLogger.Load(), "the fallback must not be stored globally")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
