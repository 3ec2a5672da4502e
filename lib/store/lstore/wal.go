package lstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/ValentinKolb/qKV/lib/db"
)

// LogFile is the name of the write log inside the data directory
const LogFile = "qkv.log"

const (
	opUpsert    byte = 1
	opTombstone byte = 2

	// entry header: payload length u32 + crc32 u32
	entryHeaderSize = 8
	// payload header: op u8 + ts i64 + key length u32
	payloadHeaderSize = 13
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// writeLog is an append-only log of every write since the last snapshot.
// Replaying it is order independent since the db ignores writes older than
// the stored record.
//
// Entry layout:
//
//	[len u32][crc32c(payload) u32][op u8][ts i64][keyLen u32][key][value]
type writeLog struct {
	mu   sync.Mutex
	file *os.File
	sync bool
	buf  []byte
}

// openWriteLog opens (or creates) the log at path for appending
func openWriteLog(path string, syncWrites bool) (*writeLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &writeLog{file: f, sync: syncWrites}, nil
}

// append writes one entry. The write is on disk (or in the page cache if
// sync is off) when append returns.
func (l *writeLog) append(op byte, key string, value []byte, ts int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	payloadLen := payloadHeaderSize + len(key) + len(value)
	l.buf = l.buf[:0]
	l.buf = binary.LittleEndian.AppendUint32(l.buf, uint32(payloadLen))
	l.buf = binary.LittleEndian.AppendUint32(l.buf, 0) // crc, filled below
	l.buf = append(l.buf, op)
	l.buf = binary.LittleEndian.AppendUint64(l.buf, uint64(ts))
	l.buf = binary.LittleEndian.AppendUint32(l.buf, uint32(len(key)))
	l.buf = append(l.buf, key...)
	l.buf = append(l.buf, value...)
	binary.LittleEndian.PutUint32(l.buf[4:8], crc32.Checksum(l.buf[entryHeaderSize:], crcTable))

	if _, err := l.file.Write(l.buf); err != nil {
		return err
	}
	if l.sync {
		return l.file.Sync()
	}
	return nil
}

// replay applies every intact entry to database and returns the number of
// entries applied. A torn or corrupt tail (crash during append) is cut off.
func (l *writeLog) replay(database db.KVDB) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	info, err := l.file.Stat()
	if err != nil {
		return 0, err
	}
	if _, err := l.file.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	r := bufio.NewReader(l.file)
	var valid int64
	applied := 0
	header := make([]byte, entryHeaderSize)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			Logger.Warningf("write log has a torn entry at offset %d, truncating", valid)
			break
		}

		size := binary.LittleEndian.Uint32(header[0:4])
		sum := binary.LittleEndian.Uint32(header[4:8])
		if size < payloadHeaderSize || valid+entryHeaderSize+int64(size) > info.Size() {
			Logger.Warningf("write log has a torn or invalid entry at offset %d, truncating", valid)
			break
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			Logger.Warningf("write log has a torn entry at offset %d, truncating", valid)
			break
		}
		if crc32.Checksum(payload, crcTable) != sum {
			Logger.Warningf("write log checksum mismatch at offset %d, truncating", valid)
			break
		}

		if err := applyEntry(database, payload); err != nil {
			Logger.Warningf("write log entry at offset %d: %v, truncating", valid, err)
			break
		}
		valid += int64(entryHeaderSize) + int64(size)
		applied++
	}

	if err := l.file.Truncate(valid); err != nil {
		return applied, err
	}
	if _, err := l.file.Seek(valid, io.SeekStart); err != nil {
		return applied, err
	}
	return applied, nil
}

// reset empties the log after its entries went into a snapshot
func (l *writeLog) reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Truncate(0); err != nil {
		return err
	}
	_, err := l.file.Seek(0, io.SeekStart)
	return err
}

func (l *writeLog) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

func applyEntry(database db.KVDB, payload []byte) error {
	op := payload[0]
	ts := int64(binary.LittleEndian.Uint64(payload[1:9]))
	keyLen := int(binary.LittleEndian.Uint32(payload[9:13]))
	if payloadHeaderSize+keyLen > len(payload) {
		return fmt.Errorf("key length %d exceeds entry", keyLen)
	}
	key := string(payload[payloadHeaderSize : payloadHeaderSize+keyLen])

	switch op {
	case opUpsert:
		database.Upsert(key, payload[payloadHeaderSize+keyLen:], ts)
	case opTombstone:
		database.Tombstone(key, ts)
	default:
		return fmt.Errorf("unknown op %d", op)
	}
	return nil
}
