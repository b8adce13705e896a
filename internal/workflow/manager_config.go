package workflow

import "github.com/DanHUMassMed/sumtube/internal/queue"

// ConfigureStages registers the concrete stage handlers the workflow will run.
func (m *Manager) ConfigureStages(set StageSet) {
	stages := make([]pipelineStage, 0, 3)
	if set.Fetcher != nil {
		stages = append(stages, pipelineStage{
			name:             "fetcher",
			handler:          set.Fetcher,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusFetching,
			doneStatus:       queue.StatusFetched,
		})
	}
	if set.Summarizer != nil {
		stages = append(stages, pipelineStage{
			name:             "summarizer",
			handler:          set.Summarizer,
			startStatus:      queue.StatusFetched,
			processingStatus: queue.StatusSummarizing,
			doneStatus:       queue.StatusSummarized,
		})
	}
	if set.Renderer != nil {
		stages = append(stages, pipelineStage{
			name:             "renderer",
			handler:          set.Renderer,
			startStatus:      queue.StatusSummarized,
			processingStatus: queue.StatusRendering,
			doneStatus:       queue.StatusCompleted,
		})
	}

	stageByStart := make(map[queue.Status]pipelineStage, len(stages))
	statusOrder := make([]queue.Status, 0, len(stages))
	for _, stg := range stages {
		stageByStart[stg.startStatus] = stg
		statusOrder = append(statusOrder, stg.startStatus)
	}

	m.mu.Lock()
	m.stages = stages
	m.statusOrder = statusOrder
	m.stageByStart = stageByStart
	m.mu.Unlock()
}

func (m *Manager) stageForStatus(status queue.Status) (pipelineStage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stg, ok := m.stageByStart[status]
	return stg, ok
}
