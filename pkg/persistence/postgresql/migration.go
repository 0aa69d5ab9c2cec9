package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				job_count INT NOT NULL DEFAULT 0,
				jobs_processed INT NOT NULL DEFAULT 0,
				jobs_failed INT NOT NULL DEFAULT 0,
				finished_job_ids JSONB NOT NULL DEFAULT '[]',
				failed_job_ids JSONB NOT NULL DEFAULT '[]',
				version BIGINT NOT NULL DEFAULT 0,
				started_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE,
				cancelled_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
			CREATE INDEX idx_workflows_finished_at ON workflows(finished_at);

			CREATE TABLE workflow_jobs (
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				job_type VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				dependencies JSONB NOT NULL DEFAULT '[]',
				position INT NOT NULL DEFAULT 0,
				delay TIMESTAMP WITH TIME ZONE,
				queue VARCHAR(255),
				connection VARCHAR(255),
				gated BOOLEAN NOT NULL DEFAULT false,
				params JSONB,
				status VARCHAR(50) NOT NULL DEFAULT 'pending',
				started_at TIMESTAMP WITH TIME ZONE,
				gated_at TIMESTAMP WITH TIME ZONE,
				finished_at TIMESTAMP WITH TIME ZONE,
				failed_at TIMESTAMP WITH TIME ZONE,
				error TEXT,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_jobs_status ON workflow_jobs(workflow_id, status);
		`,
	}
}
