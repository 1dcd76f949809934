package util

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Put sets key to val in the ordered document. An existing key keeps its
// position and gets the new value, otherwise the pair is appended.
func Put(d bson.D, key string, val any) bson.D {
	for i := range d {
		if d[i].Key == key {
			d[i].Value = val
			return d
		}
	}
	return append(d, bson.E{Key: key, Value: val})
}

// PutAll merges src into dst with last-write-wins semantics.
func PutAll(dst, src bson.D) bson.D {
	for _, e := range src {
		dst = Put(dst, e.Key, e.Value)
	}
	return dst
}
