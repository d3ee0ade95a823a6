package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create workflows table
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				definition JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);

			-- Create chat_sessions table
			CREATE TABLE chat_sessions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_chat_sessions_workflow_id ON chat_sessions(workflow_id);

			-- Create chat_messages table
			CREATE TABLE chat_messages (
				id UUID PRIMARY KEY,
				session_id UUID NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
				role VARCHAR(50) NOT NULL CHECK (role IN ('user', 'assistant')),
				content TEXT NOT NULL,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_chat_messages_session_id ON chat_messages(session_id);
			CREATE INDEX idx_chat_messages_created_at ON chat_messages(created_at);
		`,
		2: `
			-- Migration 2: document storage with pgvector embeddings

			CREATE EXTENSION IF NOT EXISTS vector;

			CREATE TABLE documents (
				id UUID PRIMARY KEY,
				filename VARCHAR(512) NOT NULL,
				workflow_id UUID REFERENCES workflows(id) ON DELETE SET NULL,
				chunk_count INT NOT NULL DEFAULT 0,
				processed BOOLEAN NOT NULL DEFAULT false,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_documents_workflow_id ON documents(workflow_id);

			CREATE TABLE document_chunks (
				id UUID PRIMARY KEY,
				document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
				workflow_id UUID,
				chunk_index INT NOT NULL,
				content TEXT NOT NULL,
				embedding vector(768) NOT NULL,
				UNIQUE (document_id, chunk_index)
			);

			CREATE INDEX idx_document_chunks_document_id ON document_chunks(document_id);
			CREATE INDEX idx_document_chunks_workflow_id ON document_chunks(workflow_id);
			CREATE INDEX idx_document_chunks_embedding ON document_chunks
				USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
		`,
	}
}
