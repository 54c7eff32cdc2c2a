package db

import (
	"github.com/vmihailenco/msgpack/v5"
)

func encode(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

func decode(b []byte, dest interface{}) error {
	return msgpack.Unmarshal(b, dest)
}
