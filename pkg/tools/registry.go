// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tools

import (
	"sort"
	"sync"
)

// Registry maps tool names to adapters. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// NewBuiltinRegistry creates a registry preloaded with the built-in
// tools. protectedRoots are the path prefixes delete_file refuses.
func NewBuiltinRegistry(protectedRoots []string) *Registry {
	r := NewRegistry()
	for _, tool := range Builtins(protectedRoots) {
		_ = r.Register(tool)
	}
	return r
}

// Register adds a tool. Names are unique; a second registration under
// the same name fails.
func (r *Registry) Register(tool Tool) error {
	name := tool.GetInfo().Name
	if name == "" {
		return &RegistryError{Action: "register", Tool: name, Message: "tool name is required"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return &RegistryError{Action: "register", Tool: name, Message: "tool already registered"}
	}
	r.tools[name] = tool
	return nil
}

// Replace adds or overwrites a tool. Used when a user-defined tool is
// resubmitted.
func (r *Registry) Replace(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.GetInfo().Name] = tool
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		return false
	}
	delete(r.tools, name)
	return true
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns tool metadata sorted by name.
func (r *Registry) List() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ToolInfo, 0, len(r.tools))
	for _, tool := range r.tools {
		infos = append(infos, tool.GetInfo())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
