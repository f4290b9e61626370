package datastore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePathRejectsTraversal(t *testing.T) {
	s := &Server{BaseDir: "/srv/files"}

	_, err := s.resolvePath("../../etc/passwd")
	require.Error(t, err)

	_, err = s.resolvePath("..")
	require.Error(t, err)

	_, err = s.resolvePath("/etc/passwd")
	require.Error(t, err)
}

func TestResolvePathJoinsBaseDir(t *testing.T) {
	s := &Server{BaseDir: "/srv/files"}

	path, err := s.resolvePath("hello.txt")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/srv/files", "hello.txt"), path)
}

func TestResolvePathAllowsNestedSubdirectory(t *testing.T) {
	s := &Server{BaseDir: "/srv/files"}

	path, err := s.resolvePath("sub/dir/hello.txt")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/srv/files", "sub/dir/hello.txt"), path)
}
