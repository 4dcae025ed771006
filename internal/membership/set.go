// Package membership implements compact sets of content ids.
package membership

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/RoaringBitmap/roaring"
)

// ErrEmptySet is returned when choosing from a set with no members.
var ErrEmptySet = errors.New("membership: empty set")

// Set is a set of content ids backed by a compressed bitmap.
// A Set is not safe for concurrent mutation; callers synchronize.
type Set struct {
	bm *roaring.Bitmap
}

// New returns a set holding ids.
func New(ids ...uint32) *Set {
	return &Set{bm: roaring.BitmapOf(ids...)}
}

// Contains reports whether id is a member.
func (s *Set) Contains(id uint32) bool {
	return s.bitmap().Contains(id)
}

// Insert adds id to the set. Inserting an existing member is a no-op.
func (s *Set) Insert(id uint32) {
	if s.bm == nil {
		s.bm = roaring.New()
	}
	s.bm.Add(id)
}

// Difference returns the members of s that are not in other.
func (s *Set) Difference(other *Set) *Set {
	return &Set{bm: roaring.AndNot(s.bitmap(), other.bitmap())}
}

// Len returns the number of members.
func (s *Set) Len() int {
	return int(s.bitmap().GetCardinality())
}

func (s *Set) IsEmpty() bool {
	return s.bitmap().IsEmpty()
}

// ChooseRandom returns a member chosen uniformly at random.
func (s *Set) ChooseRandom() (uint32, error) {
	n := s.bitmap().GetCardinality()
	if n == 0 {
		return 0, ErrEmptySet
	}

	id, err := s.bm.Select(uint32(rand.Uint64N(n)))
	if err != nil {
		return 0, fmt.Errorf("membership: select: %w", err)
	}

	return id, nil
}

// Max returns the largest member, ok is false when the set is empty.
func (s *Set) Max() (id uint32, ok bool) {
	if s.IsEmpty() {
		return 0, false
	}
	return s.bm.Maximum(), true
}

// IDs returns the members in ascending order.
func (s *Set) IDs() []uint32 {
	return s.bitmap().ToArray()
}

func (s *Set) Clone() *Set {
	return &Set{bm: s.bitmap().Clone()}
}

func (s *Set) Equal(other *Set) bool {
	return s.bitmap().Equals(other.bitmap())
}

// MarshalBinary encodes the set in the portable roaring format.
func (s *Set) MarshalBinary() ([]byte, error) {
	b, err := s.bitmap().ToBytes()
	if err != nil {
		return nil, fmt.Errorf("membership: serialize: %w", err)
	}
	return b, nil
}

// UnmarshalBinary replaces the members of s with the decoded set.
// An empty buffer decodes to the empty set.
func (s *Set) UnmarshalBinary(data []byte) error {
	bm := roaring.New()
	if len(data) > 0 {
		if err := bm.UnmarshalBinary(data); err != nil {
			return fmt.Errorf("membership: deserialize: %w", err)
		}
	}
	s.bm = bm
	return nil
}

// Parse decodes a set produced by MarshalBinary.
func Parse(data []byte) (*Set, error) {
	s := new(Set)
	if err := s.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set) String() string {
	return s.bitmap().String()
}

func (s *Set) bitmap() *roaring.Bitmap {
	if s == nil || s.bm == nil {
		return roaring.New()
	}
	return s.bm
}
