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

// Package merkle provides content hashing and Merkle tree construction over
// a directory's file universe. The tree root is a cheap fingerprint used to
// decide whether any reindex work is needed at all.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sort"
	"strings"
)

// hashBufferSize is the window size for streamed file hashing.
const hashBufferSize = 64 * 1024

// ContentHash returns the hex-encoded SHA-256 of the file's bytes, streamed
// in 64 KiB windows. An unreadable file still gets a stable identity:
// the hash of "ERROR:" plus the error text. The pipeline can then place the
// file in the index and retry it on the next pass when the error clears.
func ContentHash(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return errorHash(err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashBufferSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return errorHash(err)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

func errorHash(err error) string {
	sum := sha256.Sum256([]byte("ERROR:" + err.Error()))
	return hex.EncodeToString(sum[:])
}

// TextHash returns the hex-encoded SHA-256 of a string. Used for chunk
// hashes.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// LeafHash derives a leaf node hash from a file's relative path and its
// content hash. Binding the path in makes renames detectable at the tree
// level even when content is identical.
func LeafHash(path, contentHash string) string {
	sum := sha256.Sum256([]byte(path + ":" + contentHash))
	return hex.EncodeToString(sum[:])
}

// InternalHash derives an internal node hash from its children's hashes.
// Children are sorted ascending before joining so equal file universes
// always yield equal hashes regardless of traversal order.
func InternalHash(childHashes []string) string {
	sorted := make([]string, len(childHashes))
	copy(sorted, childHashes)
	sort.Strings(sorted)

	sum := sha256.Sum256([]byte(strings.Join(sorted, ":")))
	return hex.EncodeToString(sum[:])
}

// EmptyHash is the hash of a directory node with no children.
func EmptyHash(nodePath string) string {
	sum := sha256.Sum256([]byte("EMPTY:" + nodePath))
	return hex.EncodeToString(sum[:])
}
