package lease

import (
	"github.com/beesaferoot/rentals/internal/apperr"
	"github.com/beesaferoot/rentals/internal/models"
)

// CommentNode is a comment with its replies.
type CommentNode struct {
	models.LeaseComment
	Replies []*CommentNode `json:"replies"`
}

// BuildTree arranges flat comments into a forest. Roots and replies keep
// the input order. A reply to an unknown comment is an error.
func BuildTree(comments []models.LeaseComment) ([]*CommentNode, error) {
	nodes := make(map[string]*CommentNode, len(comments))
	for _, c := range comments {
		nodes[c.ID] = &CommentNode{LeaseComment: c, Replies: []*CommentNode{}}
	}

	roots := []*CommentNode{}
	for _, c := range comments {
		node := nodes[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*c.ParentID]
		if !ok {
			return nil, parentNotFound(*c.ParentID)
		}
		parent.Replies = append(parent.Replies, node)
	}
	return roots, nil
}

func parentNotFound(id string) error {
	return apperr.WithMetadata(apperr.CodeParentNotFound, "parent comment not found",
		map[string]string{"parent_id": id})
}
