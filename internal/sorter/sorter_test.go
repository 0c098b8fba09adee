package sorter

import (
	"context"
	"testing"
)

func TestSortAllRefusesWithoutMasterlist(t *testing.T) {
	s := &Sorter{gameType: "skyrimse", binary: "true"}
	_, err := s.SortAll(context.Background(), []string{"a.esp"})
	if err != ErrMasterlistNotLoaded {
		t.Fatalf("got %v, want ErrMasterlistNotLoaded", err)
	}
}

func TestSetAdditionalDataPathsCopiesSlice(t *testing.T) {
	s := &Sorter{}
	paths := []string{"a", "b"}
	s.SetAdditionalDataPaths(paths)
	paths[0] = "mutated"
	if s.dataPaths[0] != "a" {
		t.Fatalf("SetAdditionalDataPaths must copy, got %v", s.dataPaths)
	}
}
