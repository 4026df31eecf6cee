// Package sandbox 提供沙箱执行服务的 Go SDK。
//
// 沙箱服务以容器为单位提供隔离的命令执行与文件操作接口。每个沙箱内可以创建多个会话，
// 会话拥有独立的工作目录和环境变量，同一沙箱的所有会话共享文件系统。
//
// # 核心概念
//
//   - Manager: 进程内的沙箱句柄注册表，负责请求发送、超时和错误转换，同一 ID 只对应一个 *Sandbox
//   - Sandbox: 单个远程沙箱，文件与命令操作默认在 "default" 会话中执行
//   - Session: 沙箱内的执行上下文，所有请求都会携带 sessionId
//
// # 快速开始
//
//	m, err := sandbox.NewManager(&sandbox.Config{
//	    BaseURL: os.Getenv("SANDBOX_BASE_URL"),
//	    Timeout: 30 * time.Second,
//	})
//
//	sb, err := m.CreateOrGet(ctx, "my-sandbox", &sandbox.CreateOptions{
//	    KeepAlive: sandbox.Bool(true),
//	})
//	defer m.Destroy(ctx, sb.ID())
//
//	err = sb.Write(ctx, "/workspace/hello.txt", "Hello!")
//	content, err := sb.Read(ctx, "/workspace/hello.txt")
//
//	result, err := sb.Run(ctx, "ls -l /workspace")
//	fmt.Println(result.Output())
//
// # 沙箱生命周期
//
// Manager 提供沙箱的创建和销毁:
//
//   - [Manager.CreateOrGet]: 创建沙箱（服务端幂等），返回缓存的句柄
//   - [Manager.Destroy]: 销毁沙箱，成功后移出缓存
//   - [Manager.DestroyAll]: 按创建顺序销毁所有缓存的沙箱，支持遇错即停或尽力而为
//   - [Manager.Get] / [Manager.IDs]: 查询本地缓存
//
// # 会话
//
//	s, err := sb.CreateOrGetSession(ctx, "prod", &sandbox.SessionOptions{
//	    Env: map[string]string{"NODE_ENV": "production"},
//	    Cwd: "/workspace/prod",
//	})
//	result, err := s.Run(ctx, "pwd")
//
//	// 默认会话不能删除
//	_, err = sb.DeleteSession(ctx, "prod")
//
// 会话已存在时，Env 与 Cwd 是否生效由服务端决定。
// [Sandbox.DestroyAllSessions] 删除除 "default" 以外的全部会话。
//
// # 脚本执行
//
// [Session.RunScript] 接受本地脚本路径或脚本内容，上传到 /workspace 后用指定解释器执行:
//
//	result, err := sb.RunScript(ctx, "print(1+1)", "python3", "")
//	fmt.Println(result["scriptPath"], result.Output())
//
// # 存储桶挂载
//
//	_, err = sb.MountBucket(ctx, "my-bucket", "/data", sandbox.MountOptions{
//	    Endpoint: "https://s3.example.com",
//	    Provider: "s3",
//	    Credentials: &sandbox.BucketCredentials{
//	        AccessKeyID:     "ak",
//	        SecretAccessKey: "sk",
//	    },
//	})
//
// # 错误处理
//
// 所有方法返回的错误均为 *[Error]，可通过 [KindOf] 或 errors.Is 判断类型:
//
//	if errors.Is(err, sandbox.ErrTimeout) {
//	    // 请求超时
//	}
//	var e *sandbox.Error
//	if errors.As(err, &e) && e.StatusCode == http.StatusNotFound {
//	    // 服务端返回 404
//	}
//
// StatusCode 为 0 表示请求没有得到 HTTP 响应（超时、连接失败等）。
//
// # 配置
//
// 未在 [Config] 中设置的字段依次从环境变量（SANDBOX_BASE_URL、SANDBOX_TIMEOUT、
// SANDBOX_DISABLE_PROXY_DETECT）、配置文件 ~/.sandbox/config.toml 和默认值中获取。
// 代理优先使用 Config.Proxy，其次是 HTTP_PROXY/HTTPS_PROXY，最后探测本机 7890、7891、7897 端口。
package sandbox
