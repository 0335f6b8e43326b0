package service

import (
	"fmt"
	"net/url"
	"regexp"
)

// Record links double as retrieval keys. The embedded user_id is only
// a claim, the real ownership check happens against the index when the
// link is resolved
var linkPattern = regexp.MustCompile(`record_id=([^&]+)&user_id=([^&]+)`)

// EncodeRecordURL builds a retrievable link for an asset. The host
// comes from the inbound request and is never stored, so links can be
// regenerated for whatever host the service is reached on. IDs are
// query-escaped, identity services hand out arbitrary strings
func EncodeRecordURL(assetID, ownerID, host string) string {
	return fmt.Sprintf("http://%s/audio/record?record_id=%s&user_id=%s",
		host, url.QueryEscape(assetID), url.QueryEscape(ownerID))
}

// DecodeRecordURL extracts the (assetID, ownerID) pair from a record
// link or its query-string tail
func DecodeRecordURL(link string) (assetID, ownerID string, err error) {
	m := linkPattern.FindStringSubmatch(link)
	if m == nil {
		return "", "", ErrLinkFormat
	}

	assetID, err = url.QueryUnescape(m[1])
	if err != nil {
		return "", "", ErrLinkFormat
	}

	ownerID, err = url.QueryUnescape(m[2])
	if err != nil {
		return "", "", ErrLinkFormat
	}

	return assetID, ownerID, nil
}
