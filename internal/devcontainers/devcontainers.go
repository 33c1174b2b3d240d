// Package devcontainers starts throwaway database and object storage
// containers for integration tests and local development.
package devcontainers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/go-sql-driver/mysql"
	"github.com/localnerve/itsm-api/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Logf receives progress messages. testing.T.Logf satisfies it.
type Logf func(format string, args ...any)

// Options describe the containers to start.
type Options struct {
	DBType         string // mariadb, mysql, postgres
	DBImage        string
	DBPort         string
	DBDatabase     string
	DBUser         string
	DBPassword     string
	DBRootPassword string

	// Tmpfs keeps the database data directory in memory.
	Tmpfs bool

	// MinIO starts an S3 compatible server when set.
	MinIO         bool
	MinIOImage    string
	MinIOUser     string
	MinIOPassword string
	S3Bucket      string
	S3Region      string
}

// OptionsFromEnv reads Options from the environment, filling defaults
// for anything unset.
func OptionsFromEnv() Options {
	opts := Options{
		DBType:         getenv("DB_TYPE", "mariadb"),
		DBDatabase:     getenv("DB_DATABASE", "itsm"),
		DBUser:         getenv("DB_USER", "itsm"),
		DBPassword:     getenv("DB_PASSWORD", "itsm"),
		DBRootPassword: getenv("DB_ROOT_PASSWORD", "root"),
		Tmpfs:          os.Getenv("DB_TMPFS") != "false",
		MinIO:          os.Getenv("STORAGE_TYPE") == "s3",
		MinIOImage:     getenv("MINIO_IMAGE", "minio/minio:latest"),
		MinIOUser:      getenv("MINIO_ROOT_USER", "minioadmin"),
		MinIOPassword:  getenv("MINIO_ROOT_PASSWORD", "minioadmin"),
		S3Bucket:       getenv("STORAGE_S3_BUCKET", "itsm-attachments"),
		S3Region:       getenv("STORAGE_S3_REGION", "us-east-1"),
	}
	switch opts.DBType {
	case "postgres", "postgresql":
		opts.DBImage = getenv("DB_IMAGE", "postgres:16-alpine")
		opts.DBPort = getenv("DB_PORT", "5432")
	default:
		opts.DBImage = getenv("DB_IMAGE", "mariadb:11")
		opts.DBPort = getenv("DB_PORT", "3306")
	}
	return opts
}

// Containers holds the running containers and their published ports.
type Containers struct {
	Network *testcontainers.DockerNetwork
	DB      testcontainers.Container
	MinIO   testcontainers.Container

	opts      Options
	dbHost    string
	dbPort    string
	s3Address string
}

// Start creates a network, the database container and optionally MinIO.
// On failure everything already started is terminated.
func Start(ctx context.Context, opts Options, logf Logf) (*Containers, error) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	cs := &Containers{opts: opts}

	nw, err := network.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create network: %w", err)
	}
	cs.Network = nw

	if err := cs.startDB(ctx, logf); err != nil {
		return nil, errors.Join(err, cs.Terminate(context.Background()))
	}
	if opts.MinIO {
		if err := cs.startMinIO(ctx, logf); err != nil {
			return nil, errors.Join(err, cs.Terminate(context.Background()))
		}
	}

	logf("containers started successfully")
	return cs, nil
}

func (cs *Containers) startDB(ctx context.Context, logf Logf) error {
	tcpPort, err := nat.NewPort("tcp", cs.opts.DBPort)
	if err != nil {
		return fmt.Errorf("failed to create DB port: %w", err)
	}

	if ok, err := imageExists(ctx, cs.opts.DBImage); err != nil {
		logf("could not list local images: %v", err)
	} else if !ok {
		logf("image %s does not exist locally, pulling...", cs.opts.DBImage)
	}

	tmpfsPath := "/var/lib/mysql"
	if isPostgres(cs.opts.DBType) {
		tmpfsPath = "/var/lib/postgresql/data"
	}

	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        cs.opts.DBImage,
			ExposedPorts: []string{string(tcpPort)},
			Env:          dbInitEnv(cs.opts),
			WaitingFor:   wait.ForListeningPort(tcpPort).WithStartupTimeout(90 * time.Second),
			Networks:     []string{cs.Network.Name},
			NetworkAliases: map[string][]string{
				cs.Network.Name: {"db"},
			},
			HostConfigModifier: func(hostConfig *container.HostConfig) {
				if cs.opts.Tmpfs {
					hostConfig.Tmpfs = map[string]string{tmpfsPath: "rw"}
				}
			},
		},
		Started: true,
	})
	if err != nil {
		return fmt.Errorf("failed to start database: %w", err)
	}
	cs.DB = dbContainer

	host, err := dbContainer.Host(ctx)
	if err != nil {
		return fmt.Errorf("failed to get database host: %w", err)
	}
	port, err := dbContainer.MappedPort(ctx, tcpPort)
	if err != nil {
		return fmt.Errorf("failed to get database port: %w", err)
	}
	cs.dbHost, cs.dbPort = host, port.Port()
	logf("DB_HOST=%s DB_PORT=%s", cs.dbHost, cs.dbPort)

	if !isPostgres(cs.opts.DBType) {
		if err := waitForMySQL(ctx, cs.opts, cs.dbHost, cs.dbPort); err != nil {
			return err
		}
	}
	return nil
}

func (cs *Containers) startMinIO(ctx context.Context, logf Logf) error {
	tcpPort, err := nat.NewPort("tcp", "9000")
	if err != nil {
		return fmt.Errorf("failed to create MinIO port: %w", err)
	}

	minio, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        cs.opts.MinIOImage,
			ExposedPorts: []string{string(tcpPort)},
			Cmd:          []string{"server", "/data"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     cs.opts.MinIOUser,
				"MINIO_ROOT_PASSWORD": cs.opts.MinIOPassword,
			},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort(tcpPort).WithStartupTimeout(60 * time.Second),
			Networks:   []string{cs.Network.Name},
			NetworkAliases: map[string][]string{
				cs.Network.Name: {"minio"},
			},
		},
		Started: true,
	})
	if err != nil {
		return fmt.Errorf("failed to start MinIO: %w", err)
	}
	cs.MinIO = minio

	host, err := minio.Host(ctx)
	if err != nil {
		return fmt.Errorf("failed to get MinIO host: %w", err)
	}
	port, err := minio.MappedPort(ctx, tcpPort)
	if err != nil {
		return fmt.Errorf("failed to get MinIO port: %w", err)
	}
	cs.s3Address = net.JoinHostPort(host, port.Port())
	logf("STORAGE_S3_ENDPOINT=http://%s", cs.s3Address)
	return nil
}

// Config returns a copy of base pointed at the running containers.
func (cs *Containers) Config(base config.Config) *config.Config {
	cfg := base
	cfg.DBType = cs.opts.DBType
	cfg.DBHost = cs.dbHost
	cfg.DBPort = cs.dbPort
	cfg.DBDatabase = cs.opts.DBDatabase
	cfg.DBUser = cs.opts.DBUser
	cfg.DBPassword = cs.opts.DBPassword
	if cfg.DBConnectionLimit <= 0 {
		cfg.DBConnectionLimit = 5
	}
	if cs.MinIO != nil {
		cfg.StorageType = "s3"
		cfg.StorageS3Bucket = cs.opts.S3Bucket
		cfg.StorageS3Region = cs.opts.S3Region
		cfg.StorageS3Endpoint = "http://" + cs.s3Address
	}
	return &cfg
}

// Env lists the variables a server process needs to use the containers.
func (cs *Containers) Env() map[string]string {
	env := map[string]string{
		"DB_TYPE":     cs.opts.DBType,
		"DB_HOST":     cs.dbHost,
		"DB_PORT":     cs.dbPort,
		"DB_DATABASE": cs.opts.DBDatabase,
		"DB_USER":     cs.opts.DBUser,
		"DB_PASSWORD": cs.opts.DBPassword,
	}
	if cs.MinIO != nil {
		env["STORAGE_TYPE"] = "s3"
		env["STORAGE_S3_BUCKET"] = cs.opts.S3Bucket
		env["STORAGE_S3_REGION"] = cs.opts.S3Region
		env["STORAGE_S3_ENDPOINT"] = "http://" + cs.s3Address
		env["AWS_ACCESS_KEY_ID"] = cs.opts.MinIOUser
		env["AWS_SECRET_ACCESS_KEY"] = cs.opts.MinIOPassword
	}
	return env
}

// Terminate stops every container and removes the network.
func (cs *Containers) Terminate(ctx context.Context) error {
	var errs []error
	if cs.MinIO != nil {
		if err := cs.MinIO.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to terminate MinIO: %w", err))
		}
	}
	if cs.DB != nil {
		if err := cs.DB.Terminate(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to terminate database: %w", err))
		}
	}
	if cs.Network != nil {
		if err := cs.Network.Remove(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove network: %w", err))
		}
	}
	return errors.Join(errs...)
}

func dbInitEnv(opts Options) map[string]string {
	if isPostgres(opts.DBType) {
		return map[string]string{
			"POSTGRES_PASSWORD": opts.DBPassword,
			"POSTGRES_USER":     opts.DBUser,
			"POSTGRES_DB":       opts.DBDatabase,
		}
	}
	return map[string]string{
		"MYSQL_ROOT_PASSWORD": opts.DBRootPassword,
		"MYSQL_DATABASE":      opts.DBDatabase,
		"MYSQL_USER":          opts.DBUser,
		"MYSQL_PASSWORD":      opts.DBPassword,
	}
}

// waitForMySQL blocks until the server accepts root logins, then makes
// sure the application user owns the database. MariaDB reports a
// listening port before its init scripts finish.
func waitForMySQL(ctx context.Context, opts Options, host, port string) error {
	mc := mysql.NewConfig()
	mc.User = "root"
	mc.Passwd = opts.DBRootPassword
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(host, port)

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database for setup: %w", err)
	}
	defer db.Close()

	for i := 0; i < 30; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		return fmt.Errorf("database not ready after 30 seconds: %w", err)
	}

	statements := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", opts.DBDatabase),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'%%'", opts.DBDatabase, opts.DBUser),
		"FLUSH PRIVILEGES",
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w : when executing > %s", err, stmt)
		}
	}
	return nil
}

func imageExists(ctx context.Context, imageName string) (bool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return false, err
	}
	defer cli.Close()

	images, err := cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return false, err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == imageName {
				return true, nil
			}
		}
	}
	return false, nil
}

func isPostgres(dbType string) bool {
	return strings.HasPrefix(dbType, "postgres")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
