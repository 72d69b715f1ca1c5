package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileBackend_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.yaml")

	backend, err := NewFileBackend(path)
	require.NoError(t, err)
	require.Equal(t, path, backend.Path())
	s, err := NewStore(backend)
	require.NoError(t, err)

	require.NoError(t, s.SetInt(ctx, "cleanup.fast_batch", 10))
	require.NoError(t, s.SetString(ctx, "runtime.profile", "fast"))
	require.NoError(t, s.Close())

	// 重新打开，load-on-open 恢复全部键
	backend2, err := NewFileBackend(path)
	require.NoError(t, err)
	s2, err := NewStore(backend2)
	require.NoError(t, err)
	defer s2.Close()

	v, err := s2.GetInt(ctx, "cleanup.fast_batch")
	require.NoError(t, err)
	require.Equal(t, int64(10), v)

	profile, err := s2.GetString(ctx, "runtime.profile")
	require.NoError(t, err)
	require.Equal(t, "fast", profile)
}

func TestFileBackend_AtomicRewrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.yaml")

	backend, err := NewFileBackend(path)
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, backend.Set(ctx, "key", "value"))

	// 写入完成后没有残留的临时文件
	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestFileBackend_DeleteRemovesFromDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "settings.yaml")

	backend, err := NewFileBackend(path)
	require.NoError(t, err)
	require.NoError(t, backend.Set(ctx, "gone", "1"))
	require.NoError(t, backend.Set(ctx, "kept", "2"))
	require.NoError(t, backend.Delete(ctx, "gone"))
	// 删除不存在的键为空操作
	require.NoError(t, backend.Delete(ctx, "never"))
	require.NoError(t, backend.Close())

	reopened, err := NewFileBackend(path)
	require.NoError(t, err)
	defer reopened.Close()

	_, found, err := reopened.Get(ctx, "gone")
	require.NoError(t, err)
	require.False(t, found)

	v, found, err := reopened.Get(ctx, "kept")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "2", v)
}

func TestFileBackend_CorruptFileRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("key: [1, 2"), 0644))

	_, err := NewFileBackend(path)
	require.Error(t, err)
}

func TestFileBackend_EmptyPathRejected(t *testing.T) {
	_, err := NewFileBackend("")
	require.Error(t, err)
}
