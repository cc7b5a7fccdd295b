package providers

import "time"

// shutdownTimeout bounds graceful shutdown of long-running components.
const shutdownTimeout = 10 * time.Second
