package worker

import (
	"container/list"
	"sync"
	"time"
)

type clientQueue struct {
	jobs     []Job
	enqueued bool
}

// Dispatcher hands jobs to pool workers, taking one job per client in
// round-robin order so a single busy client cannot starve the others.
type Dispatcher struct {
	pool     *jobChannelPool
	JobQueue chan Job // interface for outer jobs get in the dispatcher
	Manager  *Manager

	mu        sync.Mutex
	queues    map[string]*clientQueue // pending jobs for each client
	ready     *list.List              // LRU queue storing client keys
	positions map[string]*list.Element

	submitMu  sync.RWMutex
	closed    bool
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(minWorkers, maxWorkers, queueSize int, manager *Manager, idleTimeout time.Duration) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	d := &Dispatcher{
		queues:    make(map[string]*clientQueue),
		ready:     list.New(),
		positions: make(map[string]*list.Element),
		pool:      newJobChannelPool(minWorkers, maxWorkers, idleTimeout, manager),
		JobQueue:  make(chan Job, queueSize),
		Manager:   manager,
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	for i := 0; i < minWorkers; i++ {
		d.pool.spawnWorker()
	}

	go d.run()
	return d
}

// Submit enqueues without blocking. ErrDispatcherBusy means the queue is
// full.
func (d *Dispatcher) Submit(job Job) error {
	d.submitMu.RLock()
	defer d.submitMu.RUnlock()
	if d.closed {
		return ErrManagerClosed
	}
	select {
	case d.JobQueue <- job:
		return nil
	default:
		return ErrDispatcherBusy
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		// dispatch one job of the client in the front of LRU queue
		if !d.dispatchOne() {
			select {
			case job := <-d.JobQueue: // force congestion
				d.enqueueJob(job)
			case <-d.quit:
				d.drain()
				return
			}
			continue
		}
		select {
		case job := <-d.JobQueue: // non-congestion
			d.enqueueJob(job)
		case <-d.quit:
			d.drain()
			return
		default:
		}
	}
}

func (d *Dispatcher) enqueueJob(job Job) {
	key := job.clientKey()

	d.mu.Lock()
	defer d.mu.Unlock()

	q := d.queues[key]
	if q == nil {
		q = &clientQueue{}
		d.queues[key] = q
	}
	q.jobs = append(q.jobs, job)
	if q.enqueued {
		return
	}
	q.enqueued = true
	d.positions[key] = d.ready.PushBack(key)
}

// dispatchOne takes the next job of the first client in LRU order and
// blocks until a worker is free.
func (d *Dispatcher) dispatchOne() bool {
	d.mu.Lock()
	elem := d.ready.Front()
	if elem == nil {
		d.mu.Unlock()
		return false
	}
	key := elem.Value.(string)
	q := d.queues[key]
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		// last job for this client, it leaves the rotation
		q.enqueued = false
		d.ready.Remove(elem)
		delete(d.positions, key)
		delete(d.queues, key)
	} else {
		d.ready.MoveToBack(elem)
	}
	d.mu.Unlock()

	workerChan := d.pool.acquire()
	if workerChan == nil {
		job.reject(ErrManagerClosed)
		return true
	}
	debugLog("[dispatcher] assign job %s for client %q to worker-%d", job.Type, key, d.pool.workerID(workerChan))
	workerChan <- job
	return true
}

// drain rejects everything still queued after Close.
func (d *Dispatcher) drain() {
	d.mu.Lock()
	for key, q := range d.queues {
		for _, job := range q.jobs {
			job.reject(ErrManagerClosed)
		}
		delete(d.queues, key)
	}
	d.ready.Init()
	d.positions = make(map[string]*list.Element)
	d.mu.Unlock()

	for {
		select {
		case job := <-d.JobQueue:
			job.reject(ErrManagerClosed)
		default:
			return
		}
	}
}

// Close stops dispatching, rejects pending jobs and stops idle workers.
// Jobs already running finish normally.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.submitMu.Lock()
		d.closed = true
		d.submitMu.Unlock()

		close(d.quit)
		d.pool.close()
		<-d.done
	})
}
