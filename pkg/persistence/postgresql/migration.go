package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflows table; the graph is stored as builder JSON
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				nodes JSONB NOT NULL DEFAULT '[]',
				edges JSONB NOT NULL DEFAULT '[]',
				is_active BOOLEAN NOT NULL DEFAULT false,
				room_id VARCHAR(255),
				growth_stage VARCHAR(50) NOT NULL DEFAULT '',
				owner VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_owner ON workflows(owner);
			CREATE INDEX idx_workflows_room_id ON workflows(room_id);
			CREATE INDEX idx_workflows_is_active ON workflows(is_active);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);
		`,
		2: `
			-- Activity feed entries about workflows
			CREATE TABLE activity_logs (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL,
				action VARCHAR(50) NOT NULL,
				result VARCHAR(20) NOT NULL CHECK (result IN ('success', 'warning', 'failed')),
				details JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_activity_logs_workflow_id ON activity_logs(workflow_id, created_at DESC);
		`,
	}
}
