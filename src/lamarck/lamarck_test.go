package lamarck

import (
	"os"
	"testing"
	"time"

	"github.com/mosaicnetworks/lamarck/src/chain"
	"github.com/mosaicnetworks/lamarck/src/config"
	"github.com/mosaicnetworks/lamarck/src/dummy"
	"github.com/mosaicnetworks/lamarck/src/validators"
)

func TestInitStore(t *testing.T) {
	os.RemoveAll("test_data")
	os.Mkdir("test_data", os.ModeDir|0777)
	defer os.RemoveAll("test_data")

	conf := config.NewDefaultConfig()
	conf.SetDataDir("test_data")
	conf.Store = true

	l := NewLamarck(conf)
	l.Validators = validators.NewSet([]*validators.Validator{
		validators.NewValidator("node0", "node0"),
	})

	if err := l.initStore(); err != nil {
		t.Fatal(err)
	}

	if l.Store.NeedBootstrap() {
		t.Fatal("fresh database should not need bootstrap")
	}

	// a block makes the database non-empty
	block, err := chain.NewBlock(0, "node0", chain.ChangeSet{"k": "v"}, chain.GenesisHash)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Store.SetBlock(block); err != nil {
		t.Fatal(err)
	}

	if err := l.Store.Close(); err != nil {
		t.Fatal(err)
	}

	// with Bootstrap, a second node on the same datadir loads the existing
	// database and replays the ledger
	conf.Bootstrap = true

	l2 := NewLamarck(conf)
	l2.Validators = l.Validators

	if err := l2.initStore(); err != nil {
		t.Fatal(err)
	}

	if !l2.Store.NeedBootstrap() {
		t.Fatal("existing database should need bootstrap")
	}

	if l2.Store.LastBlockIndex() != 0 {
		t.Fatalf("last block index should be 0, not %d", l2.Store.LastBlockIndex())
	}

	if err := l2.Store.Close(); err != nil {
		t.Fatal(err)
	}

	// without Bootstrap, the existing database is ignored and the ledger
	// starts empty
	conf.Bootstrap = false

	l3 := NewLamarck(conf)
	l3.Validators = l.Validators

	if err := l3.initStore(); err != nil {
		t.Fatal(err)
	}
	defer l3.Store.Close()

	if l3.Store.LastBlockIndex() != -1 {
		t.Fatalf("non-bootstrap store should start empty; last index is %d",
			l3.Store.LastBlockIndex())
	}
}

func TestBootstrapForcesStore(t *testing.T) {
	os.RemoveAll("test_data_bootstrap")
	os.Mkdir("test_data_bootstrap", os.ModeDir|0777)
	defer os.RemoveAll("test_data_bootstrap")

	conf := config.NewDefaultConfig()
	conf.SetDataDir("test_data_bootstrap")
	conf.Bootstrap = true

	l := NewLamarck(conf)
	l.Validators = validators.NewSet([]*validators.Validator{})

	if err := l.initStore(); err != nil {
		t.Fatal(err)
	}
	defer l.Store.Close()

	if !conf.Store {
		t.Fatal("bootstrap should force the persistent store")
	}

	if l.Store.StorePath() != conf.DatabaseDir {
		t.Fatalf("store path should be %s, not %s", conf.DatabaseDir, l.Store.StorePath())
	}
}

func TestInit(t *testing.T) {
	os.RemoveAll("test_data")
	os.Mkdir("test_data", os.ModeDir|0777)
	defer os.RemoveAll("test_data")

	conf := config.NewDefaultConfig()
	conf.SetDataDir("test_data")
	conf.NodeID = "node0"
	conf.NoService = true
	conf.SweepInterval = 10 * time.Millisecond

	client := dummy.NewInmemDummyClient(conf.Logger().Logger)
	conf.Proxy = client

	l := NewLamarck(conf)

	if err := l.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}

	if !l.Validators.Contains("node0") {
		t.Fatal("node0 should be in the validator set")
	}

	// validators.json was written
	if _, err := os.Stat(conf.ValidatorsFile()); err != nil {
		t.Fatalf("err: %v", err)
	}

	go l.Run()
	defer l.Node.Shutdown()

	client.SubmitChanges(chain.ChangeSet{"note": "hello"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if l.Chain.LastBlockIndex() == 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if l.Chain.LastBlockIndex() != 0 {
		t.Fatal("block 0 should have been produced")
	}

	block, err := l.Chain.GetBlockByIndex(0)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if block.ProducerID != "node0" {
		t.Fatalf("producer should be node0, not %s", block.ProducerID)
	}
}

func TestInitWithoutProxy(t *testing.T) {
	conf := config.NewDefaultConfig()

	l := NewLamarck(conf)

	if err := l.Init(); err == nil {
		t.Fatal("Init should fail without an app proxy")
	}
}
