package postal

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	. "gopkg.in/check.v1"

	"github.com/owldoor/zipradius/internal/geo"
	"github.com/owldoor/zipradius/internal/postaltest"
	"github.com/owldoor/zipradius/internal/spatial"
)

type StoreSuite struct{}

var _ = Suite(&StoreSuite{})

func (s *StoreSuite) TestLoadAndGet(c *C) {
	src := postaltest.Fixture()
	store := NewStore([]DataSource{src}, WithLogger(zap.NewNop()))

	_, loaded := store.Loaded()
	c.Check(loaded, Equals, false)

	rec, err := store.Get(context.Background(), " 90210 ")
	c.Assert(err, IsNil)
	c.Check(rec.City, Equals, "Beverly Hills")

	table, loaded := store.Loaded()
	c.Assert(loaded, Equals, true)
	c.Check(table.Len(), Equals, postaltest.Accepted)
	c.Check(table.Source(), Equals, "fixture")
	c.Check(table.Stats().Duplicates, Equals, 1)

	rec, ok := table.Get("501")
	c.Check(ok, Equals, true)
	c.Check(rec.Code, Equals, "00501")
}

func (s *StoreSuite) TestLookupErrors(c *C) {
	store := NewStore([]DataSource{postaltest.Fixture()})

	_, err := store.Get(context.Background(), "00000")
	c.Check(errors.Is(err, ErrNotFound), Equals, true)

	_, err = store.Get(context.Background(), "nope")
	c.Check(errors.Is(err, ErrMalformedCode), Equals, true)
}

func (s *StoreSuite) TestLoadsOnceThenServesCache(c *C) {
	src := postaltest.Fixture()
	store := NewStore([]DataSource{src})

	t1, err := store.Load(context.Background())
	c.Assert(err, IsNil)
	t2, err := store.Load(context.Background())
	c.Assert(err, IsNil)

	c.Check(t1 == t2, Equals, true)
	c.Check(src.Calls(), Equals, 1)
}

func (s *StoreSuite) TestFallsBackInOrder(c *C) {
	down := postaltest.Failing("primary", errors.New("connection refused"))
	garbage := &postaltest.Source{ID: "garbage", Data: []byte("<html>maintenance</html>\n")}
	good := postaltest.Fixture()
	never := postaltest.Fixture()
	never.ID = "never"

	store := NewStore([]DataSource{down, garbage, good, never})
	table, err := store.Load(context.Background())
	c.Assert(err, IsNil)

	c.Check(table.Source(), Equals, "fixture")
	c.Check(down.Calls(), Equals, 1)
	c.Check(garbage.Calls(), Equals, 1)
	c.Check(good.Calls(), Equals, 1)
	c.Check(never.Calls(), Equals, 0)
}

func (s *StoreSuite) TestAllSourcesFail(c *C) {
	boom := errors.New("boom")
	store := NewStore([]DataSource{
		postaltest.Failing("a", boom),
		&postaltest.Source{ID: "b", Data: []byte("US\tnot\tenough\n")},
	})

	_, err := store.Load(context.Background())
	c.Assert(err, NotNil)
	c.Check(errors.Is(err, ErrDataUnavailable), Equals, true)
	c.Check(errors.Is(err, boom), Equals, true)
	c.Check(errors.Is(err, ErrNoRecords), Equals, true)
	c.Check(err, ErrorMatches, "(?s).*a: fetching: boom.*")
}

func (s *StoreSuite) TestNoSources(c *C) {
	_, err := NewStore(nil).Load(context.Background())
	c.Check(errors.Is(err, ErrDataUnavailable), Equals, true)
}

func (s *StoreSuite) TestFailureIsNotCached(c *C) {
	src := postaltest.Failing("flaky", errors.New("503"))
	store := NewStore([]DataSource{src})

	_, err := store.Load(context.Background())
	c.Assert(errors.Is(err, ErrDataUnavailable), Equals, true)

	src.Err = nil
	src.Data = postaltest.US
	table, err := store.Load(context.Background())
	c.Assert(err, IsNil)
	c.Check(table.Len(), Equals, postaltest.Accepted)
	c.Check(src.Calls(), Equals, 2)
}

func (s *StoreSuite) TestConcurrentFirstUseLoadsOnce(c *C) {
	src := postaltest.Fixture()
	src.Gate = make(chan struct{})
	store := NewStore([]DataSource{src})

	const callers = 32
	var (
		wg     sync.WaitGroup
		tables = make([]*Table, callers)
		errs   = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tables[i], errs[i] = store.Load(context.Background())
		}(i)
	}

	waitFor(c, func() bool { return src.Calls() == 1 })
	close(src.Gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		c.Assert(errs[i], IsNil)
		c.Check(tables[i] == tables[0], Equals, true)
	}
	c.Check(src.Calls(), Equals, 1)
}

func (s *StoreSuite) TestAbandonedWaitDoesNotCancelLoad(c *C) {
	src := postaltest.Fixture()
	src.Gate = make(chan struct{})
	store := NewStore([]DataSource{src})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := store.Load(ctx)
		done <- err
	}()

	waitFor(c, func() bool { return src.Calls() == 1 })
	cancel()
	c.Check(errors.Is(<-done, context.Canceled), Equals, true)

	close(src.Gate)
	table, err := store.Load(context.Background())
	c.Assert(err, IsNil)
	c.Check(table.Len(), Equals, postaltest.Accepted)
	c.Check(src.Calls(), Equals, 1)
}

func (s *StoreSuite) TestFetchTimeoutFallsThrough(c *C) {
	slow := postaltest.Fixture()
	slow.ID = "slow"
	slow.Gate = make(chan struct{}) // never opened
	store := NewStore([]DataSource{slow, postaltest.Fixture()}, WithFetchTimeout(20*time.Millisecond))

	table, err := store.Load(context.Background())
	c.Assert(err, IsNil)
	c.Check(table.Source(), Equals, "fixture")
}

func (s *StoreSuite) TestFetchTimeoutReportsDeadline(c *C) {
	slow := postaltest.Fixture()
	slow.Gate = make(chan struct{})
	store := NewStore([]DataSource{slow}, WithFetchTimeout(10*time.Millisecond))

	_, err := store.Load(context.Background())
	c.Check(errors.Is(err, ErrDataUnavailable), Equals, true)
	c.Check(errors.Is(err, context.DeadlineExceeded), Equals, true)
}

func (s *StoreSuite) TestIndexKinds(c *C) {
	center := geo.Point{Latitude: 34.0901, Longitude: -118.4065}
	var want []spatial.Match
	for _, kind := range spatial.Kinds {
		store := NewStore([]DataSource{postaltest.Fixture()}, WithIndex(kind))
		table, err := store.Load(context.Background())
		c.Assert(err, IsNil, Commentf("index %s", kind))

		matches, _ := table.Within(center, 5)
		if want == nil {
			want = matches
			continue
		}
		c.Check(matches, DeepEquals, want, Commentf("index %s", kind))
	}
	c.Check(want, HasLen, 8)
}

func (s *StoreSuite) TestUnknownIndexFailsLoad(c *C) {
	store := NewStore([]DataSource{postaltest.Fixture()}, WithIndex("quadtree"))
	_, err := store.Load(context.Background())
	c.Check(errors.Is(err, ErrDataUnavailable), Equals, true)
}

func waitFor(c *C, cond func() bool) {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			c.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
