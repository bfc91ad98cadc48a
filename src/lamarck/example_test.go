package lamarck

import (
	"os"

	"github.com/mosaicnetworks/lamarck/src/config"
	"github.com/mosaicnetworks/lamarck/src/dummy"
)

// This example uses Lamarck with the in-memory dummy application defined in
// the dummy package. It illustrates how the application is plugged into
// Lamarck, and how a node is started.
func Example() {
	// Start from default configuration.
	lamarckConfig := config.NewDefaultConfig()

	// Define the AppProxy which is the hook between Lamarck and the
	// application. Here we use the dummy application, but this is where most
	// of the work will reside when implementing a Lamarck application.
	appProxy := dummy.NewInmemDummyClient(lamarckConfig.Logger().Logger)

	// Set the AppProxy in the Lamarck configuration.
	lamarckConfig.Proxy = appProxy

	// Instantiate Lamarck.
	lamarck := NewLamarck(lamarckConfig)

	// Read in the configuration and initialise the node accordingly.
	if err := lamarck.Init(); err != nil {
		lamarckConfig.Logger().Error("Cannot initialize lamarck:", err)
		os.Exit(1)
	}

	// Run the node asynchronously.
	go lamarck.Run()

	// Shut the node down cleanly upon stopping.
	defer lamarck.Node.Shutdown()
}
