package resources

import (
	"math/rand"
	"sync/atomic"
)

// UploadMethod selects which storage surface a container/queue belongs to,
// per §3.
type UploadMethod string

const (
	MethodDefault UploadMethod = "DEFAULT"
	MethodStorage UploadMethod = "STORAGE"
	MethodLake    UploadMethod = "LAKE"
)

// Container is a single entry of the container/lake-folder/queue lists the
// engine's configuration endpoint returns: a URL with an embedded signed
// query string, tagged with the upload method it belongs to.
type Container struct {
	URL          string
	UploadMethod UploadMethod
}

// roundRobin is the shared atomic counter described in §4.2/§5: "a shared
// counter per (cache, method-list) increments atomically on each
// selection, so concurrent uploaders against the same cache distribute
// across all containers."
type roundRobin struct {
	counter atomic.Uint64
}

func (r *roundRobin) next(listLen int) int {
	if listLen == 0 {
		return 0
	}
	return int(r.counter.Add(1) % uint64(listLen))
}

// Topology is the ConfigurationCache's memoized view of the engine's
// ingestion topology. Per §12 (SPEC_FULL supplement) it also carries a
// Queues list: §4.4 requires selecting "a queue from the cache's shuffled
// queue list", which the abbreviated wire schema in §6 never names a field
// for — Queues closes that gap the same way Containers/LakeFolders do.
type Topology struct {
	Containers      []Container
	LakeFolders     []Container
	Queues          []Container
	PreferredMethod UploadMethod

	storageRR roundRobin
	lakeRR    roundRobin
	queueRR   roundRobin
}

// SelectContainer implements the DEFAULT/STORAGE/LAKE resolution and
// round-robin distribution from §4.2's "Container selection" and "Round-
// robin distribution" subsections. It returns the resolved method's list
// and that list's shared round-robin counter, from which the caller draws
// its start index.
func (t *Topology) SelectContainer(requested UploadMethod) ([]Container, *roundRobin, error) {
	method := t.resolveMethod(requested)
	switch method {
	case MethodStorage:
		if len(t.Containers) == 0 {
			return nil, nil, errNoContainers
		}
		return t.Containers, &t.storageRR, nil
	case MethodLake:
		if len(t.LakeFolders) == 0 {
			return nil, nil, errNoContainers
		}
		return t.LakeFolders, &t.lakeRR, nil
	default:
		return nil, nil, errNoContainers
	}
}

func (t *Topology) resolveMethod(requested UploadMethod) UploadMethod {
	switch requested {
	case MethodStorage:
		if len(t.Containers) > 0 {
			return MethodStorage
		}
		if len(t.LakeFolders) > 0 {
			return MethodLake
		}
		return ""
	case MethodLake:
		if len(t.LakeFolders) > 0 {
			return MethodLake
		}
		if len(t.Containers) > 0 {
			return MethodStorage
		}
		return ""
	default: // DEFAULT
		if t.PreferredMethod == MethodStorage && len(t.Containers) > 0 {
			return MethodStorage
		}
		if t.PreferredMethod == MethodLake && len(t.LakeFolders) > 0 {
			return MethodLake
		}
		if len(t.Containers) > 0 {
			return MethodStorage
		}
		if len(t.LakeFolders) > 0 {
			return MethodLake
		}
		return ""
	}
}

// ShuffledQueues returns the queue list in a randomized order, per §4.4
// step 3 ("select a queue from the cache's shuffled queue list"). A fresh
// shuffle is computed on every call rather than mutating the shared slice,
// since Queues is read concurrently by every caller sharing this Topology.
func (t *Topology) ShuffledQueues() []Container {
	if len(t.Queues) == 0 {
		return nil
	}
	shuffled := make([]Container, len(t.Queues))
	copy(shuffled, t.Queues)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}
