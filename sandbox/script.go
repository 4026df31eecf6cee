package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DefaultInterpreter 是 RunScript 未指定解释器时使用的解释器。
const DefaultInterpreter = "python3"

const scriptDir = "/workspace"

// scriptExtension 返回解释器对应的脚本扩展名。
func scriptExtension(interpreter string) string {
	switch interpreter {
	case "python3", "python":
		return ".py"
	case "bash", "sh":
		return ".sh"
	case "node", "nodejs":
		return ".js"
	}
	return ".txt"
}

// scriptCommand 返回执行 path 处脚本的命令。
func scriptCommand(interpreter, path string) string {
	switch interpreter {
	case "python3", "python":
		return "python3 " + path
	case "bash", "sh":
		return "bash " + path
	case "node", "nodejs":
		return "node " + path
	}
	return interpreter + " " + path
}

// resolveScript 判断 scriptPathOrContent 是本地文件还是脚本内容，返回脚本内容、远程路径和本地路径。
// 内联脚本的 localPath 为空。
func resolveScript(scriptPathOrContent, interpreter, sandboxPath string) (content, remotePath, localPath string, err error) {
	info, statErr := os.Stat(scriptPathOrContent)
	isFile := statErr == nil && info.Mode().IsRegular()

	if isFile {
		data, rErr := os.ReadFile(scriptPathOrContent)
		if rErr != nil {
			return "", "", "", invalidArgument("runScript",
				fmt.Sprintf("Failed to read script file '%s'", scriptPathOrContent), rErr)
		}
		content = string(data)
		localPath = scriptPathOrContent
	} else {
		content = scriptPathOrContent
	}

	remotePath = sandboxPath
	if remotePath == "" {
		if isFile {
			name := filepath.Base(scriptPathOrContent)
			if name == "" || !strings.Contains(name, ".") {
				name = "script" + scriptExtension(interpreter)
			}
			remotePath = scriptDir + "/" + name
		} else {
			remotePath = fmt.Sprintf("%s/script-%s%s", scriptDir, uuid.NewString(), scriptExtension(interpreter))
		}
	}
	return content, remotePath, localPath, nil
}

// RunScript 上传并执行脚本。
//
// scriptPathOrContent 若指向本地可读的普通文件，则上传其内容，默认远程路径为 /workspace/<文件名>；
// 否则视为脚本内容，默认远程路径为 /workspace/script-<uuid><扩展名>。sandboxPath 非空时覆盖默认路径。
// 返回结果额外包含 scriptPath、interpreter、localPath（内联脚本为 nil）和 sessionId 字段。
func (s *Session) RunScript(ctx context.Context, scriptPathOrContent, interpreter, sandboxPath string) (ExecutionResult, error) {
	if interpreter == "" {
		interpreter = DefaultInterpreter
	}

	content, remotePath, localPath, err := resolveScript(scriptPathOrContent, interpreter, sandboxPath)
	if err != nil {
		return nil, err
	}

	if err := s.Write(ctx, remotePath, content); err != nil {
		return nil, err
	}

	result, err := s.Run(ctx, scriptCommand(interpreter, remotePath))
	if err != nil {
		return nil, err
	}

	result["scriptPath"] = remotePath
	result["interpreter"] = interpreter
	if localPath != "" {
		result["localPath"] = localPath
	} else {
		result["localPath"] = nil
	}
	result["sessionId"] = s.sessionID
	return result, nil
}
