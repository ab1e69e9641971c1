package worker

// Worker runs analysis jobs handed to it by the pool, one at a time.
type Worker struct {
	id         int
	manager    *Manager
	pool       *jobChannelPool
	jobChannel chan Job
}

func NewWorker(id int, pool *jobChannelPool, manager *Manager) *Worker {
	return &Worker{
		id:         id,
		manager:    manager,
		pool:       pool,
		jobChannel: make(chan Job),
	}
}

func (w *Worker) Start() {
	go func() {
		for {
			if !w.pool.Release(w.jobChannel) {
				w.pool.retire(w.jobChannel)
				debugLog("[worker-%d] exiting", w.id)
				return
			}
			job := <-w.jobChannel
			switch job.Type {
			case Stop:
				w.pool.retire(w.jobChannel)
				debugLog("[worker-%d] stopped", w.id)
				return
			case Analyze:
				w.manager.handleAnalyze(w.id, job.AnalyzeTask)
			}
		}
	}()
}
