package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow templates
			CREATE TABLE workflow_templates (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE workflow_stages (
				id UUID PRIMARY KEY,
				template_id UUID NOT NULL REFERENCES workflow_templates(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				order_index INT NOT NULL,
				parallel_execution BOOLEAN NOT NULL DEFAULT false
			);

			CREATE INDEX idx_workflow_stages_template_order ON workflow_stages(template_id, order_index);

			CREATE TABLE workflow_tasks (
				id UUID PRIMARY KEY,
				workflow_stage_id UUID NOT NULL REFERENCES workflow_stages(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				order_index INT NOT NULL
			);

			CREATE TABLE workflow_steps (
				id UUID PRIMARY KEY,
				workflow_task_id UUID NOT NULL REFERENCES workflow_tasks(id) ON DELETE CASCADE,
				name VARCHAR(255) NOT NULL,
				order_index INT NOT NULL
			);
		`,
		2: `
			-- Projects, users and the runtime workflow instance
			CREATE TABLE projects (
				id UUID PRIMARY KEY,
				company_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('ACTIVE', 'ON_HOLD', 'COMPLETED', 'CANCELLED')),
				template_id UUID NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_projects_company_id ON projects(company_id);

			CREATE TABLE users (
				id UUID PRIMARY KEY,
				company_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				email VARCHAR(255) NOT NULL,
				role VARCHAR(50) NOT NULL
			);

			CREATE TABLE project_stages (
				id UUID PRIMARY KEY,
				project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				workflow_stage_id UUID NOT NULL REFERENCES workflow_stages(id),
				name VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				version BIGINT NOT NULL DEFAULT 1
			);

			CREATE INDEX idx_project_stages_project_id ON project_stages(project_id);

			CREATE TABLE project_tasks (
				id UUID PRIMARY KEY,
				project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				project_stage_id UUID NOT NULL REFERENCES project_stages(id) ON DELETE CASCADE,
				workflow_task_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				order_index INT NOT NULL,
				status VARCHAR(50) NOT NULL,
				assignee_id UUID,
				assignment_accepted BOOLEAN NOT NULL DEFAULT false,
				accepted_at TIMESTAMP WITH TIME ZONE,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				version BIGINT NOT NULL DEFAULT 1
			);

			CREATE INDEX idx_project_tasks_stage ON project_tasks(project_stage_id, order_index);

			CREATE TABLE project_steps (
				id UUID PRIMARY KEY,
				project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				project_task_id UUID NOT NULL REFERENCES project_tasks(id) ON DELETE CASCADE,
				workflow_step_id UUID NOT NULL,
				name VARCHAR(255) NOT NULL,
				order_index INT NOT NULL,
				status VARCHAR(50) NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				version BIGINT NOT NULL DEFAULT 1
			);

			CREATE INDEX idx_project_steps_task ON project_steps(project_task_id, order_index);
		`,
	}
}
