package registry

import (
	"fmt"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-broker/pkg/errors"
	"github.com/stretchr/testify/suite"
	"pgregory.net/rapid"
)

type RequestStoreTestSuite struct {
	suite.Suite
	clock time.Time
	store *RequestStore
}

func TestRequestStoreSuite(t *testing.T) {
	suite.Run(t, new(RequestStoreTestSuite))
}

func (suite *RequestStoreTestSuite) SetupTest() {
	suite.clock = time.Date(2022, 3, 1, 9, 30, 0, 0, time.UTC)
	suite.store = NewRequestStore(time.Minute, func() time.Time { return suite.clock })
}

func (suite *RequestStoreTestSuite) TestRememberAndLookup() {
	suite.Require().NoError(suite.store.Remember("r1", Response{Value: 42}))

	response, ok := suite.store.Lookup("r1")
	suite.True(ok)
	suite.Equal(42, response.Value)
	suite.NoError(response.Err)

	_, ok = suite.store.Lookup("r2")
	suite.False(ok)
}

func (suite *RequestStoreTestSuite) TestRememberKeepsErrors() {
	failure := errors.New(errors.ErrCodeCashError, "no cash")
	suite.Require().NoError(suite.store.Remember("r1", Response{Err: failure}))

	response, ok := suite.store.Lookup("r1")
	suite.True(ok)
	suite.True(errors.HasCode(response.Err, errors.ErrCodeCashError))
}

func (suite *RequestStoreTestSuite) TestRememberDuplicate() {
	suite.Require().NoError(suite.store.Remember("r1", Response{Value: 1}))

	err := suite.store.Remember("r1", Response{Value: 2})
	suite.True(errors.HasCode(err, errors.ErrCodeDuplicateRequest))

	response, _ := suite.store.Lookup("r1")
	suite.Equal(1, response.Value)
}

func (suite *RequestStoreTestSuite) TestRememberEmptyID() {
	err := suite.store.Remember("", Response{})
	suite.True(errors.HasCode(err, errors.ErrCodeBadParameter))
}

func (suite *RequestStoreTestSuite) TestExpiry() {
	suite.Require().NoError(suite.store.Remember("r1", Response{Value: 1}))
	suite.clock = suite.clock.Add(30 * time.Second)
	suite.Require().NoError(suite.store.Remember("r2", Response{Value: 2}))

	suite.clock = suite.clock.Add(30 * time.Second)

	_, ok := suite.store.Lookup("r1")
	suite.False(ok, "r1 is a full ttl old")

	_, ok = suite.store.Lookup("r2")
	suite.True(ok)

	// an expired id can be used again
	suite.NoError(suite.store.Remember("r1", Response{Value: 3}))
	response, _ := suite.store.Lookup("r1")
	suite.Equal(3, response.Value)
}

func (suite *RequestStoreTestSuite) TestPurge() {
	for i := 0; i < 5; i++ {
		suite.Require().NoError(suite.store.Remember(fmt.Sprintf("r%d", i), Response{}))
		suite.clock = suite.clock.Add(20 * time.Second)
	}

	suite.Equal(5, suite.store.Len())

	// now is 100s after r0: r0, r1 and r2 are at least a minute old
	suite.Equal(3, suite.store.Purge())
	suite.Equal(2, suite.store.Len())
	suite.Equal(0, suite.store.Purge())
}

func (suite *RequestStoreTestSuite) TestSameInstant() {
	suite.Require().NoError(suite.store.Remember("b", Response{}))
	suite.Require().NoError(suite.store.Remember("a", Response{}))
	suite.Equal(2, suite.store.Len())

	suite.clock = suite.clock.Add(time.Minute)
	suite.Equal(2, suite.store.Purge())
}

// TestProperty_RequestStoreExpiry checks that an id is found exactly while it is younger than the ttl.
func TestProperty_RequestStoreExpiry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		clock := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
		ttl := time.Duration(rapid.IntRange(1, 100).Draw(t, "ttl")) * time.Second
		store := NewRequestStore(ttl, func() time.Time { return clock })

		seen := map[string]time.Time{}
		steps := rapid.IntRange(1, 50).Draw(t, "steps")

		for i := 0; i < steps; i++ {
			clock = clock.Add(time.Duration(rapid.IntRange(0, 30).Draw(t, "advance")) * time.Second)
			id := fmt.Sprintf("r%d", rapid.IntRange(0, 10).Draw(t, "id"))

			at, remembered := seen[id]
			live := remembered && clock.Sub(at) < ttl

			_, found := store.Lookup(id)
			if found != live {
				t.Fatalf("lookup %s at %s: found %v, want %v", id, clock, found, live)
			}

			err := store.Remember(id, Response{})
			if live {
				if !errors.HasCode(err, errors.ErrCodeDuplicateRequest) {
					t.Fatalf("remember %s: want duplicate, got %v", id, err)
				}

				continue
			}

			if err != nil {
				t.Fatalf("remember %s: %v", id, err)
			}

			seen[id] = clock
		}
	})
}
