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

package merkle

import (
	"path"
	"sort"
	"strings"
)

// Leaf is one file in the universe the tree summarizes. Path is the file's
// path relative to the directory root, always forward-slash separated.
type Leaf struct {
	Path        string
	ContentHash string
}

// Node is one stored tree node. The root has Path "" and Depth 0; every
// other node's Path is its slash-joined relative path.
type Node struct {
	Path   string
	Hash   string
	IsLeaf bool
	Parent string
	Depth  int
}

// Build constructs the full tree for a set of leaves, bottom-up. The result
// contains one node per file plus one node per ancestor directory, sorted by
// path with the root first. An empty leaf set yields a single root node with
// the empty-directory hash.
func Build(leaves []Leaf) []Node {
	children := make(map[string]map[string]bool)
	children[""] = make(map[string]bool)

	leafByPath := make(map[string]Leaf, len(leaves))
	for _, leaf := range leaves {
		p := strings.Trim(leaf.Path, "/")
		if p == "" {
			continue
		}
		leafByPath[p] = Leaf{Path: p, ContentHash: leaf.ContentHash}

		// Register the leaf and every ancestor directory with its parent.
		child := p
		for {
			parent := parentPath(child)
			if children[parent] == nil {
				children[parent] = make(map[string]bool)
			}
			children[parent][child] = true
			if parent == "" {
				break
			}
			child = parent
		}
	}

	var nodes []Node
	var hashNode func(nodePath string) string
	hashNode = func(nodePath string) string {
		if leaf, ok := leafByPath[nodePath]; ok {
			h := LeafHash(leaf.Path, leaf.ContentHash)
			nodes = append(nodes, Node{
				Path:   nodePath,
				Hash:   h,
				IsLeaf: true,
				Parent: parentPath(nodePath),
				Depth:  depth(nodePath),
			})
			return h
		}

		kids := children[nodePath]
		var h string
		if len(kids) == 0 {
			h = EmptyHash(nodePath)
		} else {
			childPaths := make([]string, 0, len(kids))
			for c := range kids {
				childPaths = append(childPaths, c)
			}
			sort.Strings(childPaths)

			childHashes := make([]string, 0, len(childPaths))
			for _, c := range childPaths {
				childHashes = append(childHashes, hashNode(c))
			}
			h = InternalHash(childHashes)
		}

		nodes = append(nodes, Node{
			Path:   nodePath,
			Hash:   h,
			IsLeaf: false,
			Parent: parentPath(nodePath),
			Depth:  depth(nodePath),
		})
		return h
	}

	hashNode("")

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Path < nodes[j].Path })
	return nodes
}

// RootHash builds the tree and returns only the root's hash.
func RootHash(leaves []Leaf) string {
	for _, n := range Build(leaves) {
		if n.Path == "" {
			return n.Hash
		}
	}
	return EmptyHash("")
}

func parentPath(p string) string {
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

func depth(p string) int {
	if p == "" {
		return 0
	}
	return strings.Count(p, "/") + 1
}
