package analysis

import (
	"github.com/fyrsmithlabs/observerd/internal/event"
	"github.com/fyrsmithlabs/observerd/internal/stream"
)

// CommentsID names the comment tracking reducer.
const CommentsID = "writing_observer.track_open_comments_by_document"

// Comment is one committed comment.
type Comment struct {
	CommentText  *string  `json:"comment_text"`
	FirstInputTS *float64 `json:"first_input_ts,omitempty"`
	LastInputTS  float64  `json:"last_input_ts"`
}

// Reply is one committed reply.
type Reply struct {
	Text         *string  `json:"text"`
	FirstInputTS *float64 `json:"first_input_ts,omitempty"`
	LastInputTS  float64  `json:"last_input_ts"`
}

// CommentDocument is the comment state of one document. LastInput is the
// draft being typed and never leaves internal state.
type CommentDocument struct {
	InFocus      *bool              `json:"in_focus,omitempty"`
	LastInputID  string             `json:"last_input_id,omitempty"`
	LastInput    *string            `json:"last_input,omitempty"`
	LastInputTS  *float64           `json:"last_input_ts,omitempty"`
	FirstInputTS *float64           `json:"first_input_ts,omitempty"`
	Comments     map[string]Comment `json:"comments"`
	Replies      map[string]Reply   `json:"replies"`
}

// CommentsState maps document id to its comment state.
type CommentsState map[string]CommentDocument

func (s CommentsState) clone() CommentsState {
	out := make(CommentsState, len(s))
	for id, doc := range s {
		comments := make(map[string]Comment, len(doc.Comments))
		for k, v := range doc.Comments {
			comments[k] = v
		}
		replies := make(map[string]Reply, len(doc.Replies))
		for k, v := range doc.Replies {
			replies[k] = v
		}
		doc.Comments, doc.Replies = comments, replies
		out[id] = doc
	}
	return out
}

// CommentView is the dashboard view of one document.
type CommentView struct {
	InFocus      *bool              `json:"in_focus,omitempty"`
	LastInputID  string             `json:"last_input_id,omitempty"`
	FirstInputTS *float64           `json:"first_input_ts,omitempty"`
	LastInputTS  *float64           `json:"last_input_ts,omitempty"`
	CommentCount int                `json:"comment_count"`
	ReplyCount   int                `json:"reply_count"`
	Comments     map[string]Comment `json:"comments"`
	Replies      map[string]Reply   `json:"replies"`
}

// Comments correlates typed input with the comment or reply it is committed
// as, so a dashboard can see who commented on which document.
//
// Commits upsert into the document's maps; earlier comments are kept.
type Comments struct{}

// NewComments returns the reducer.
func NewComments() Comments { return Comments{} }

func (Comments) ID() string          { return CommentsID }
func (Comments) Namespace() []string { return []string{"comments"} }
func (Comments) Initial() CommentsState {
	return CommentsState{}
}

func (Comments) Reduce(ev *event.Event, s CommentsState) (CommentsState, stream.Projection) {
	if !ev.HasDocument() || ev.Client.Type == "" {
		return s, commentsProjection(s)
	}

	s = s.clone()
	doc, ok := s[ev.Client.DocID]
	if !ok {
		doc = CommentDocument{
			Comments: map[string]Comment{},
			Replies:  map[string]Reply{},
		}
	}
	ts := ev.Client.TS

	switch {
	case ev.AttentionType() == event.AttentionFocusIn:
		doc.InFocus = boolPtr(true)
	case ev.AttentionType() == event.AttentionFocusOut:
		doc.InFocus = boolPtr(false)
	case ev.Client.Type == event.TypeInput:
		doc.LastInputID = ev.Client.ParentID
		doc.LastInput = ev.Client.Value
		doc.LastInputTS = &ts
		if doc.FirstInputTS == nil {
			doc.FirstInputTS = &ts
		}
	case ev.Client.Type == event.TypeClearInput:
		empty := ""
		doc.LastInput = &empty
	case ev.Client.Type == event.TypeAddComment, ev.Client.Type == event.TypeEditComment:
		if doc.LastInputID == "" {
			break
		}
		c := doc.Comments[doc.LastInputID]
		c.CommentText = committedText(doc.LastInput)
		if c.FirstInputTS == nil {
			c.FirstInputTS = &ts
		}
		c.LastInputTS = ts
		doc.Comments[doc.LastInputID] = c
	case ev.Client.Type == event.TypeAddReply:
		if doc.LastInputID == "" {
			break
		}
		r := doc.Replies[doc.LastInputID]
		r.Text = committedText(doc.LastInput)
		if r.FirstInputTS == nil {
			r.FirstInputTS = &ts
		}
		r.LastInputTS = ts
		doc.Replies[doc.LastInputID] = r
	}

	s[ev.Client.DocID] = doc
	return s, commentsProjection(s)
}

// committedText maps an empty draft to a null comment text.
func committedText(draft *string) *string {
	if draft == nil || *draft == "" {
		return nil
	}
	text := *draft
	return &text
}

func boolPtr(b bool) *bool { return &b }

func commentsProjection(s CommentsState) stream.Projection {
	view := make(map[string]CommentView, len(s))
	for id, doc := range s {
		view[id] = CommentView{
			InFocus:      doc.InFocus,
			LastInputID:  doc.LastInputID,
			FirstInputTS: doc.FirstInputTS,
			LastInputTS:  doc.LastInputTS,
			CommentCount: len(doc.Comments),
			ReplyCount:   len(doc.Replies),
			Comments:     doc.Comments,
			Replies:      doc.Replies,
		}
	}
	return stream.Projection{"comments": view}
}
