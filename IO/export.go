package IO

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/exp/mmap"
)

// ErrCorruptShard is returned when a .idx entry points outside its .bin file.
var ErrCorruptShard = errors.New("corrupt token id shard")

// ShardPath names shard n of prefix with the given extension (".bin" or ".idx").
func ShardPath(prefix string, n int, ext string) string {
	return fmt.Sprintf("%s-%03d%s", prefix, n, ext)
}

// ExportTokenIDsBinary writes encoded sequences to binary shards:
//
//   - .bin = concatenated little-endian uint32 token ids
//   - .idx = uint64 (byte offset, length) per sequence
//
// A new shard starts once the current .bin reaches maxShardBytes; <=0 means
// a single shard. Empty sequences are skipped. It returns the number of
// shards written.
func ExportTokenIDsBinary(outPrefix string, seqs [][]int, maxShardBytes int64) (int, error) {
	if dir := filepath.Dir(outPrefix); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, err
		}
	}

	w := &shardWriter{prefix: outPrefix}
	for _, ids := range seqs {
		if len(ids) == 0 {
			continue
		}
		// opened on first write after a rollover
		if w.dataF == nil {
			if err := w.open(); err != nil {
				return 0, err
			}
		}
		if err := w.write(ids); err != nil {
			w.close()
			return 0, err
		}
		if maxShardBytes > 0 && w.cur >= maxShardBytes {
			if err := w.close(); err != nil {
				return 0, err
			}
			w.shard++
		}
	}
	if w.dataF == nil {
		if w.shard > 0 {
			return w.shard, nil
		}
		// nothing written: still leave an empty shard 0 for readers
		if err := w.open(); err != nil {
			return 0, err
		}
	}
	if err := w.close(); err != nil {
		return 0, err
	}
	return w.shard + 1, nil
}

type shardWriter struct {
	prefix string
	shard  int
	cur    int64

	dataF, idxF *os.File
	data, idx   *bufio.Writer
	buf         [8]byte
}

func (w *shardWriter) open() error {
	var err error
	if w.dataF, err = os.Create(ShardPath(w.prefix, w.shard, ".bin")); err != nil {
		return err
	}
	if w.idxF, err = os.Create(ShardPath(w.prefix, w.shard, ".idx")); err != nil {
		w.dataF.Close()
		return err
	}
	w.data = bufio.NewWriter(w.dataF)
	w.idx = bufio.NewWriter(w.idxF)
	w.cur = 0
	return nil
}

func (w *shardWriter) write(ids []int) error {
	binary.LittleEndian.PutUint64(w.buf[:], uint64(w.cur))
	if _, err := w.idx.Write(w.buf[:]); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(w.buf[:], uint64(len(ids)))
	if _, err := w.idx.Write(w.buf[:]); err != nil {
		return err
	}
	for _, id := range ids {
		binary.LittleEndian.PutUint32(w.buf[:4], uint32(id))
		if _, err := w.data.Write(w.buf[:4]); err != nil {
			return err
		}
	}
	w.cur += int64(4 * len(ids))
	return nil
}

func (w *shardWriter) close() error {
	err := errors.Join(w.data.Flush(), w.idx.Flush())
	err = errors.Join(err, w.dataF.Close(), w.idxF.Close())
	w.dataF, w.idxF = nil, nil
	return err
}

// ReadTokenIDsBinary reads back every sequence of one shard.
func ReadTokenIDsBinary(prefix string, shard int) ([][]int, error) {
	idx, err := mmap.Open(ShardPath(prefix, shard, ".idx"))
	if err != nil {
		return nil, err
	}
	defer idx.Close()
	data, err := mmap.Open(ShardPath(prefix, shard, ".bin"))
	if err != nil {
		return nil, err
	}
	defer data.Close()

	if idx.Len()%16 != 0 {
		return nil, fmt.Errorf("%w: index size %d", ErrCorruptShard, idx.Len())
	}
	size := int64(data.Len())
	var entry [16]byte
	seqs := make([][]int, 0, idx.Len()/16)
	for off := 0; off < idx.Len(); off += 16 {
		if _, err := idx.ReadAt(entry[:], int64(off)); err != nil {
			return nil, err
		}
		start := int64(binary.LittleEndian.Uint64(entry[:8]))
		n := int64(binary.LittleEndian.Uint64(entry[8:]))
		// 4*n overflows for a corrupt length, so bound n by division
		if start < 0 || n < 0 || start > size || n > (size-start)/4 {
			return nil, fmt.Errorf("%w: entry %d", ErrCorruptShard, off/16)
		}
		raw := make([]byte, 4*n)
		if _, err := data.ReadAt(raw, start); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		ids := make([]int, n)
		for i := range ids {
			ids[i] = int(binary.LittleEndian.Uint32(raw[4*i:]))
		}
		seqs = append(seqs, ids)
	}
	return seqs, nil
}
