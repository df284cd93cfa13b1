//go:build linux

package killtree

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// descendants enumerates the transitive children of pid, deepest last, from
// a single procfs snapshot. The snapshot is inherently racy against process
// creation; Kill compensates with the process-group signal.
func descendants(pid int) []int {
	children := make(map[int][]int)
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		child, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		parent, ok := parentOf(child)
		if !ok {
			continue
		}
		children[parent] = append(children[parent], child)
	}

	var tree []int
	queue := []int{pid}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, child := range children[next] {
			tree = append(tree, child)
			queue = append(queue, child)
		}
	}

	// Reverse to deepest-first so leaves die before their parents.
	for i, j := 0, len(tree)-1; i < j; i, j = i+1, j-1 {
		tree[i], tree[j] = tree[j], tree[i]
	}
	return tree
}

func parentOf(pid int) (int, bool) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return 0, false
	}
	// Field 4 of /proc/<pid>/stat is the ppid; the comm field before it may
	// contain spaces but is parenthesised.
	text := string(data)
	close := strings.LastIndexByte(text, ')')
	if close < 0 || close+2 >= len(text) {
		return 0, false
	}
	fields := strings.Fields(text[close+2:])
	if len(fields) < 2 {
		return 0, false
	}
	parent, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return parent, true
}
