package bluesky

import (
	"encoding/json"
	"strconv"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// Collections written by this client.
const (
	CollectionLike          syntax.NSID = "app.bsky.feed.like"
	CollectionRepost        syntax.NSID = "app.bsky.feed.repost"
	CollectionFeedGenerator syntax.NSID = "app.bsky.feed.generator"
)

// Record is a typed repo record. The set of implementations is closed; each
// one names the collection it is stored in.
type Record interface {
	collection() syntax.NSID
}

// StrongRef points at one version of a record.
type StrongRef struct {
	CID syntax.CID   `json:"cid"`
	URI syntax.ATURI `json:"uri"`
}

// Like is the app.bsky.feed.like record.
type Like struct {
	CreatedAt syntax.Datetime `json:"createdAt"`
	Subject   StrongRef       `json:"subject"`
}

// Repost is the app.bsky.feed.repost record.
type Repost struct {
	CreatedAt syntax.Datetime `json:"createdAt"`
	Subject   StrongRef       `json:"subject"`
}

// FeedGenerator is the app.bsky.feed.generator record.
type FeedGenerator struct {
	DID         syntax.DID      `json:"did"`
	DisplayName string          `json:"displayName"`
	Description string          `json:"description,omitempty"`
	CreatedAt   syntax.Datetime `json:"createdAt"`
}

func (Like) collection() syntax.NSID          { return CollectionLike }
func (Repost) collection() syntax.NSID        { return CollectionRepost }
func (FeedGenerator) collection() syntax.NSID { return CollectionFeedGenerator }

// typedRecord marshals a record with its "$type" field injected first.
type typedRecord struct {
	Record
}

func (r typedRecord) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(r.Record)
	if err != nil {
		return nil, err
	}

	out := append([]byte(`{"$type":`), strconv.Quote(string(r.collection()))...)
	if len(b) > 2 {
		out = append(out, ',')
	}
	return append(out, b[1:]...), nil
}

type createRecordRequest struct {
	Repo       syntax.DID  `json:"repo"`
	Collection syntax.NSID `json:"collection"`
	Record     typedRecord `json:"record"`
}

type putRecordRequest struct {
	Repo       syntax.DID  `json:"repo"`
	Collection syntax.NSID `json:"collection"`
	RKey       string      `json:"rkey"`
	Record     typedRecord `json:"record"`
}

type deleteRecordRequest struct {
	Repo       syntax.DID  `json:"repo"`
	Collection syntax.NSID `json:"collection"`
	RKey       string      `json:"rkey"`
}

// RecordAck acknowledges a createRecord or putRecord write.
type RecordAck struct {
	URI syntax.ATURI `json:"uri"`
	CID syntax.CID   `json:"cid"`
}

func (a *RecordAck) Validate() error {
	if err := validateATURI("uri", a.URI); err != nil {
		return err
	}
	return validateCID("cid", a.CID)
}
