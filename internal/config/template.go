package config

// DefaultYAML is the template written by "cwmcp config init". The API key
// belongs in MCP_API_KEY, not here.
const DefaultYAML = `# cwmcp configuration
base_url: http://localhost:8000
enable_plan_mode: true
timeout_seconds: 300

# HTTP transport only
listen_addr: "127.0.0.1:8088"
mcp_path: /mcp
`
