// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package domain

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "brewery", c.Name)
	assert.Len(t, c.Tables, 4)
	assert.Contains(t, c.Description("beer_styles"), "Beer styles")
	assert.Contains(t, c.Description("SHIPMENTS"), "revenue")
	assert.Empty(t, c.Description("schema_migrations"))
	assert.NotEmpty(t, c.ExampleQuestions)
}

func TestPromptSection(t *testing.T) {
	section := Default().PromptSection()
	assert.Contains(t, section, "Join patterns:\n- production_batches.beer_style_id = beer_styles.id")
	assert.Contains(t, section, "Naming hints:\n")
	assert.Contains(t, section, "actual_volume_hl")

	assert.Empty(t, (&Catalog{}).PromptSection())
	var nilCatalog *Catalog
	assert.Empty(t, nilCatalog.PromptSection())
	assert.Empty(t, nilCatalog.Description("x"))

	hintsOnly := &Catalog{NamingHints: []string{"money is in cents"}}
	assert.Equal(t, "Naming hints:\n- money is in cents", hintsOnly.PromptSection())
}

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		errContains string
	}{
		{"valid", "name: x\ntables:\n  - name: a\n    description: A\n", ""},
		{"empty document", "", ""},
		{"bad yaml", "tables: [", "failed to parse domain catalog"},
		{"missing name", "tables:\n  - description: nameless\n", "has no name"},
		{"duplicate", "tables:\n  - name: a\n  - name: A\n", "twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.errContains == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read domain catalog")
}

func TestStore(t *testing.T) {
	s := NewStore(nil)
	assert.Equal(t, "brewery", s.Get().Name)

	s.Set(&Catalog{Name: "other"})
	assert.Equal(t, "other", s.Get().Name)

	s.Set(nil)
	assert.Equal(t, "other", s.Get().Name)
}

func TestWatcher_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: first\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	store := NewStore(c)

	reloaded := make(chan error, 16)
	w, err := NewWatcher(store, path, WatchConfig{
		DebounceMs: 20,
		Logger:     zaptest.NewLogger(t),
		OnReload: func(err error) {
			select {
			case reloaded <- err:
			default:
			}
		},
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("name: second\n"), 0o600))
	assert.Eventually(t, func() bool { return store.Get().Name == "second" }, 5*time.Second, 10*time.Millisecond)

	// An invalid file keeps the previous catalog.
	require.NoError(t, os.WriteFile(path, []byte("tables: ["), 0o600))
	deadline := time.After(5 * time.Second)
	for rejected := false; !rejected; {
		select {
		case err := <-reloaded:
			rejected = err != nil
		case <-deadline:
			t.Fatal("invalid catalog was not noticed")
		}
	}
	assert.Equal(t, "second", store.Get().Name)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(NewStore(nil), filepath.Join(t.TempDir(), "catalog.yaml"), WatchConfig{})
	require.NoError(t, err)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}
