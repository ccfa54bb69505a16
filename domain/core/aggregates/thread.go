// Package aggregates groups comments into reply threads.
package aggregates

import "comments-api/domain/core/entities"

// ThreadedComment is a record with its direct replies resolved.
type ThreadedComment struct {
	*entities.Record
	Replies []*ThreadedComment `json:"replies"`
}

// Nest arranges flat records into reply trees. Roots are the records without
// a replyToId; every node lists the records replying to it in input order.
// Records whose parent is not in the input are not reachable from any root and
// are dropped. The input records are wrapped, never modified.
func Nest(records []*entities.Record) []*ThreadedComment {
	nodes := make(map[string]*ThreadedComment, len(records))
	for _, r := range records {
		if _, dup := nodes[r.ID]; !dup {
			nodes[r.ID] = &ThreadedComment{Record: r, Replies: []*ThreadedComment{}}
		}
	}

	roots := make([]*ThreadedComment, 0)
	for _, r := range records {
		node := nodes[r.ID]
		if node.Record != r {
			continue
		}
		if r.IsTopLevel() {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[r.ReplyToID]; ok && parent != node {
			parent.Replies = append(parent.Replies, node)
		}
	}
	return roots
}

// Size counts the comments in a forest.
func Size(forest []*ThreadedComment) int {
	n := 0
	for _, c := range forest {
		n += 1 + Size(c.Replies)
	}
	return n
}
